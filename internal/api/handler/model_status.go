package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/cache"
	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/inference"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
)

// ModelStatusTTL is how long a model status report is served from Redis.
const ModelStatusTTL = 30 * time.Second

// ModelStatus is the data payload of GET /api/model-status/.
type ModelStatus struct {
	ModelStatus            ModelStatusDetail `json:"model_status"`
	AvailableLeafDiseases  []string          `json:"available_leaf_diseases"`
	AvailableFruitDiseases []string          `json:"available_fruit_diseases"`
	DatabaseStats          models.ImageStats `json:"database_stats"`
}

type ModelStatusDetail struct {
	Backend                   string            `json:"backend"`
	ModelLoaded               bool              `json:"model_loaded"`
	LeafModelPath             string            `json:"leaf_model_path"`
	FruitModelPath            string            `json:"fruit_model_path"`
	LeafModelExists           bool              `json:"leaf_model_exists"`
	FruitModelExists          bool              `json:"fruit_model_exists"`
	LeafClassNames            []string          `json:"leaf_class_names"`
	FruitClassNames           []string          `json:"fruit_class_names"`
	LeafClassesCount          int               `json:"leaf_classes_count"`
	FruitClassesCount         int               `json:"fruit_classes_count"`
	TreatmentSuggestionsCount int               `json:"treatment_suggestions_count"`
	ActiveModels              []*models.MLModel `json:"active_models"`
	ImgSize                   int               `json:"img_size"`
}

// ModelStatusHandler reports artifact availability, label lists and database counts.
type ModelStatusHandler struct {
	catalog *catalog.Catalog
	backend models.InferenceBackend
	locator *inference.Locator
	store   store.Store
	cache   cache.Cache
}

func NewModelStatusHandler(cat *catalog.Catalog, backend models.InferenceBackend, locator *inference.Locator,
	st store.Store, c cache.Cache) *ModelStatusHandler {
	return &ModelStatusHandler{catalog: cat, backend: backend, locator: locator, store: st, cache: c}
}

func (h *ModelStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := cache.ModelStatusKey()

	var cached ModelStatus
	if hit, err := cache.GetJSON(ctx, h.cache, key, &cached); err != nil {
		slog.Warn("model status cache read failed", "error", err)
	} else if hit {
		response.OK(w, "Model status retrieved successfully", cached)
		return
	}

	status, err := h.build(ctx)
	if err != nil {
		slog.Error("failed to build model status", "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to get model status", err.Error())
		return
	}

	if err := cache.SetJSON(ctx, h.cache, key, status, ModelStatusTTL); err != nil {
		slog.Warn("model status cache write failed", "error", err)
	}
	response.OK(w, "Model status retrieved successfully", status)
}

func (h *ModelStatusHandler) build(ctx context.Context) (*ModelStatus, error) {
	active, err := h.store.ListMLModels(ctx, true)
	if err != nil {
		return nil, err
	}
	if active == nil {
		active = []*models.MLModel{}
	}
	stats, err := h.store.ImageStats(ctx)
	if err != nil {
		return nil, err
	}

	leaf, _ := h.catalog.Family(catalog.Leaf)
	fruit, _ := h.catalog.Family(catalog.Fruit)
	leafArtifact := h.locator.Artifact(leaf)
	fruitArtifact := h.locator.Artifact(fruit)

	return &ModelStatus{
		ModelStatus: ModelStatusDetail{
			Backend:                   h.backend.Name(),
			ModelLoaded:               len(active) > 0,
			LeafModelPath:             leafArtifact.Path,
			FruitModelPath:            fruitArtifact.Path,
			LeafModelExists:           h.exists(ctx, leafArtifact),
			FruitModelExists:          h.exists(ctx, fruitArtifact),
			LeafClassNames:            leaf.Labels,
			FruitClassNames:           fruit.Labels,
			LeafClassesCount:          len(leaf.Labels),
			FruitClassesCount:         len(fruit.Labels),
			TreatmentSuggestionsCount: h.catalog.TreatmentCount(),
			ActiveModels:              active,
			ImgSize:                   leaf.InputSize,
		},
		AvailableLeafDiseases:  leaf.Labels,
		AvailableFruitDiseases: fruit.Labels,
		DatabaseStats:          stats,
	}, nil
}

func (h *ModelStatusHandler) exists(ctx context.Context, artifact models.ModelArtifact) bool {
	err := h.backend.Check(ctx, artifact)
	if err != nil && !errors.Is(err, models.ErrModelNotFound) {
		slog.Warn("model artifact check failed", "family", artifact.Family, "path", artifact.Path, "error", err)
	}
	return err == nil
}
