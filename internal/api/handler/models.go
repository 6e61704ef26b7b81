package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
)

// ModelHandler serves the model registry endpoints.
type ModelHandler struct {
	store   store.Store
	catalog *catalog.Catalog
}

func NewModelHandler(st store.Store, cat *catalog.Catalog) *ModelHandler {
	return &ModelHandler{store: st, catalog: cat}
}

// List handles GET /api/models/. ?active=true returns only active entries.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid query parameters", err.Error())
		return
	}

	list, err := h.store.ListMLModels(r.Context(), active != nil && *active)
	if err != nil {
		slog.Error("failed to list ml models", "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to list models")
		return
	}
	if list == nil {
		list = []*models.MLModel{}
	}
	response.OK(w, "Models retrieved successfully", list)
}

// Create handles POST /api/models/.
func (h *ModelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		Family       string   `json:"family"`
		FilePath     string   `json:"file_path"`
		Accuracy     *float64 `json:"accuracy"`
		TrainingDate string   `json:"training_date"`
		IsActive     bool     `json:"is_active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var errs []string
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(req.Version) == "" {
		errs = append(errs, "version is required")
	}
	if _, ok := h.catalog.Family(catalog.Family(req.Family)); !ok {
		errs = append(errs, "family must be leaf or fruit")
	}
	if req.Accuracy != nil && (*req.Accuracy < 0 || *req.Accuracy > 1) {
		errs = append(errs, "accuracy must be between 0 and 1")
	}
	var trainingDate *time.Time
	if req.TrainingDate != "" {
		t, err := time.Parse(time.RFC3339, req.TrainingDate)
		if err != nil {
			errs = append(errs, "training_date must be a valid RFC3339 timestamp")
		} else {
			trainingDate = &t
		}
	}
	if len(errs) > 0 {
		response.Error(w, http.StatusBadRequest, "Invalid model", errs...)
		return
	}

	m := &models.MLModel{
		Name:         req.Name,
		Version:      req.Version,
		Family:       req.Family,
		FilePath:     req.FilePath,
		Accuracy:     req.Accuracy,
		TrainingDate: trainingDate,
		IsActive:     req.IsActive,
	}
	if err := h.store.CreateMLModel(r.Context(), m); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "Model already exists", "name and version must be unique")
			return
		}
		slog.Error("failed to create ml model", "name", req.Name, "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to create model")
		return
	}
	response.Created(w, "Model created successfully", m)
}

// Activate handles POST /api/models/{id}/activate/.
func (h *ModelHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid model ID")
		return
	}
	m, err := h.store.ActivateMLModel(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Model not found")
			return
		}
		slog.Error("failed to activate ml model", "id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to activate model")
		return
	}
	slog.Info("ml model activated", "id", m.ID, "family", m.Family, "version", m.Version)
	response.OK(w, "Model activated successfully", m)
}
