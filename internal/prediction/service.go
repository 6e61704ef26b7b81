// Package prediction runs the predict-and-store flow behind POST /api/predict/.
package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/imaging"
	"github.com/mangosense/mangosense-api/internal/inference"
	"github.com/mangosense/mangosense-api/internal/media"
	"github.com/mangosense/mangosense-api/internal/metrics"
	"github.com/mangosense/mangosense-api/internal/ranking"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultThreshold is the top-score percent below which a result is reported as Unknown.
const DefaultThreshold = 20.0

// Request is one parsed predict upload.
type Request struct {
	Image    []byte
	Filename string
	Size     int64

	DetectionType string

	Latitude                  string
	Longitude                 string
	LocationAccuracyConfirmed bool
	LocationSource            string
	LocationAddress           string

	PreviewOnly bool

	IsDetectionCorrect  bool
	UserFeedback        string
	DetectedDisease     string
	SelectedSymptoms    []any
	PrimarySymptoms     []any
	AlternativeSymptoms []any
	TopDiseases         []any
	SymptomsData        map[string]any

	UserID    *int64
	ClientIP  string
	UserAgent string
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	Threshold     float64
	MaxImageBytes int64
	Metrics       *metrics.Metrics
}

// Service orchestrates validation, inference, ranking and persistence.
type Service struct {
	catalog   *catalog.Catalog
	backend   models.InferenceBackend
	locator   *inference.Locator
	store     store.Store
	media     media.Store
	metrics   *metrics.Metrics
	threshold float64
	maxBytes  int64
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(cat *catalog.Catalog, backend models.InferenceBackend, locator *inference.Locator,
	st store.Store, mediaStore media.Store, opts Options) *Service {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	maxBytes := opts.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = imaging.DefaultMaxBytes
	}
	return &Service{
		catalog:   cat,
		backend:   backend,
		locator:   locator,
		store:     st,
		media:     mediaStore,
		metrics:   opts.Metrics,
		threshold: threshold,
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

// Predict classifies one upload. Failures are returned as *Failure.
func (s *Service) Predict(ctx context.Context, req Request) (*Result, error) {
	start := s.now()

	if errs := imaging.Validate(req.Image, req.Size, s.maxBytes); len(errs) > 0 {
		return nil, &Failure{Message: "Invalid image file", Details: errs, Err: ErrInvalidImage}
	}

	family := catalog.ResolveFamily(req.DetectionType)
	spec, ok := s.catalog.Family(family)
	if !ok {
		return nil, &Failure{
			Message: "Model file not found: " + string(family),
			Details: []string{fmt.Sprintf("no model family %q configured", family)},
			Err:     models.ErrModelNotFound,
		}
	}

	pre, err := imaging.Preprocess(req.Image, spec)
	if err != nil {
		return nil, &Failure{Message: "Image preprocessing failed", Details: []string{detail(err, imaging.ErrPreprocess)}, Err: err}
	}

	artifact := s.locator.Artifact(spec)
	inferStart := s.now()
	probs, err := inference.Predict(ctx, s.backend, artifact, pre.Tensor, spec.Labels)
	s.metrics.ObserveInference(artifact.Family, s.backend.Name(), s.now().Sub(inferStart))
	if err != nil {
		s.metrics.ObservePrediction(artifact.Family, metrics.OutcomeFailed)
		slog.Error("inference failed", "family", artifact.Family, "path", artifact.Path, "error", err)
		return nil, inferenceFailure(err, artifact.Family, artifact.Path)
	}

	summary, err := ranking.Summarize(probs, spec.Labels)
	if err != nil {
		s.metrics.ObservePrediction(artifact.Family, metrics.OutcomeFailed)
		return nil, &Failure{Message: "ML prediction failed", Details: []string{err.Error()}, Err: models.ErrPrediction}
	}

	sideCtx := context.WithoutCancel(ctx)

	if summary.BelowFloor(s.threshold) {
		s.metrics.ObservePrediction(artifact.Family, metrics.OutcomeUnknown)
		data := s.unknownResponse(summary, artifact, pre)
		s.logPrediction(sideCtx, req, nil, start, probs, spec.Labels, summary, data)
		return &Result{Message: MessageUnknown, Data: data, Unknown: true}, nil
	}

	s.metrics.ObservePrediction(artifact.Family, metrics.OutcomeClassified)
	data := s.classifiedResponse(req, summary, artifact, pre)

	var imageID *int64
	if !req.PreviewOnly {
		img, err := s.persist(ctx, req, summary, artifact, pre, start)
		if err != nil {
			s.logPrediction(sideCtx, req, nil, start, probs, spec.Labels, summary, data)
			return nil, &Failure{Message: "Failed to save prediction", Details: []string{err.Error()}, Err: ErrSave}
		}
		imageID = &img.ID
		data.SavedImageID = imageID
		s.notify(sideCtx, img, artifact.Family, summary)
	}

	s.logPrediction(sideCtx, req, imageID, start, probs, spec.Labels, summary, data)
	return &Result{Message: MessageClassified, Data: data}, nil
}

func (s *Service) unknownResponse(summary ranking.Summary, artifact models.ModelArtifact, pre *imaging.Preprocessed) *Response {
	return &Response{
		PrimaryPrediction: PrimaryPrediction{
			Disease:         catalog.UnknownDisease,
			Confidence:      ranking.FormatPercent(summary.Primary.Confidence),
			ConfidenceScore: summary.Primary.Confidence,
			ConfidenceLevel: ranking.TierLow,
			Treatment:       catalog.UnknownTreatment,
			DetectionType:   artifact.Family,
		},
		Top3Predictions: []TopPrediction{},
		PredictionSummary: PredictionSummary{
			MostLikely:           catalog.UnknownDisease,
			ConfidenceLevel:      ranking.TierLow,
			TotalDiseasesChecked: summary.TotalChecked,
		},
		AlternativeSymptoms: AlternativeSymptoms{
			PrimaryDisease:         catalog.UnknownDisease,
			PrimaryDiseaseSymptoms: []string{},
			AlternativeDiseases:    []string{},
		},
		UserVerification: UserVerification{
			SelectedSymptoms:    []any{},
			PrimarySymptoms:     []any{},
			AlternativeSymptoms: []any{},
			DetectedDisease:     catalog.UnknownDisease,
		},
		ModelUsed: artifact.Family,
		ModelPath: artifact.Path,
		DebugInfo: debugInfo(pre),
	}
}

func (s *Service) classifiedResponse(req Request, summary ranking.Summary, artifact models.ModelArtifact, pre *imaging.Preprocessed) *Response {
	top := make([]TopPrediction, len(summary.Top))
	for i, r := range summary.Top {
		top[i] = TopPrediction{Ranked: r, Treatment: s.catalog.Treatment(r.Disease), DetectionType: artifact.Family}
	}

	alternatives := []string{}
	for _, r := range summary.Top[1:] {
		alternatives = append(alternatives, r.Disease)
	}

	primary := summary.Primary
	return &Response{
		PrimaryPrediction: PrimaryPrediction{
			Disease:         primary.Disease,
			Confidence:      ranking.FormatPercent(primary.Confidence),
			ConfidenceScore: primary.Confidence,
			ConfidenceLevel: summary.ConfidenceLevel,
			Treatment:       s.catalog.Treatment(primary.Disease),
			DetectionType:   artifact.Family,
		},
		Top3Predictions: top,
		PredictionSummary: PredictionSummary{
			MostLikely:           primary.Disease,
			ConfidenceLevel:      summary.ConfidenceLevel,
			TotalDiseasesChecked: summary.TotalChecked,
		},
		AlternativeSymptoms: AlternativeSymptoms{
			PrimaryDisease:         primary.Disease,
			PrimaryDiseaseSymptoms: []string{},
			AlternativeDiseases:    alternatives,
		},
		UserVerification: UserVerification{
			SelectedSymptoms:    orEmpty(req.SelectedSymptoms),
			PrimarySymptoms:     orEmpty(req.PrimarySymptoms),
			AlternativeSymptoms: orEmpty(req.AlternativeSymptoms),
			DetectedDisease:     req.DetectedDisease,
			IsDetectionCorrect:  req.IsDetectionCorrect,
			UserFeedback:        req.UserFeedback,
		},
		ModelUsed: artifact.Family,
		ModelPath: artifact.Path,
		DebugInfo: debugInfo(pre),
	}
}

// persist stores the upload and its prediction record. A failed insert
// removes the stored file again.
func (s *Service) persist(ctx context.Context, req Request, summary ranking.Summary,
	artifact models.ModelArtifact, pre *imaging.Preprocessed, start time.Time) (*models.MangoImage, error) {
	ref, err := s.media.Save(ctx, req.Filename, req.Image)
	if err != nil {
		slog.Error("failed to store upload", "filename", req.Filename, "error", err)
		return nil, fmt.Errorf("storing image: %w", err)
	}

	primary := summary.Primary
	img := &models.MangoImage{
		UserID:                req.UserID,
		ImagePath:             ref,
		OriginalFilename:      req.Filename,
		ImageSize:             fmt.Sprintf("%dx%d", pre.OriginalWidth, pre.OriginalHeight),
		PredictedClass:        primary.Disease,
		DiseaseClassification: primary.Disease,
		DiseaseType:           artifact.Family,
		ModelUsed:             artifact.Family,
		ModelFilename:         filepath.Base(artifact.Path),
		ConfidenceScore:       primary.Confidence / 100,
		ProcessingTime:        s.now().Sub(start).Seconds(),
		ClientIP:              req.ClientIP,
		Notes:                 fmt.Sprintf("Predicted via mobile app with %s confidence", ranking.FormatPercent(primary.Confidence)),
		DetectedDisease:       req.DetectedDisease,
		SelectedSymptoms:      jsonList(req.SelectedSymptoms),
		PrimarySymptoms:       jsonList(req.PrimarySymptoms),
		AlternativeSymptoms:   jsonList(req.AlternativeSymptoms),
		TopDiseases:           jsonList(req.TopDiseases),
	}
	if img.DetectedDisease == "" {
		img.DetectedDisease = primary.Disease
	}
	if len(req.SymptomsData) > 0 {
		img.SymptomsData, _ = json.Marshal(req.SymptomsData)
	}
	if req.UserFeedback != "" {
		feedback := req.UserFeedback
		confirmed := req.IsDetectionCorrect
		img.UserFeedback = &feedback
		img.UserConfirmedCorrect = &confirmed
	}
	if lat, lon, ok := parseLocation(req.Latitude, req.Longitude); ok {
		img.Latitude = &lat
		img.Longitude = &lon
		img.LocationConsentGiven = true
		img.LocationAccuracyOK = req.LocationAccuracyConfirmed
		img.LocationSource = req.LocationSource
		img.LocationAddress = req.LocationAddress
	}

	if err := s.store.CreateImage(ctx, img); err != nil {
		slog.Error("failed to save prediction", "filename", req.Filename, "error", err)
		if delErr := s.media.Delete(context.WithoutCancel(ctx), ref); delErr != nil {
			s.metrics.SideWriteFailed(metrics.SideWriteMediaCleanup)
			slog.Warn("failed to remove orphaned upload", "ref", ref, "error", delErr)
		}
		return nil, fmt.Errorf("creating image record: %w", err)
	}

	slog.Info("prediction saved", "image_id", img.ID, "family", artifact.Family,
		"disease", primary.Disease, "confidence", primary.Confidence)
	return img, nil
}

// notify tells the uploader, or the first staff user for anonymous uploads.
func (s *Service) notify(ctx context.Context, img *models.MangoImage, family string, summary ranking.Summary) {
	var recipient int64
	if img.UserID != nil {
		recipient = *img.UserID
	} else {
		id, err := s.store.FirstStaffUserID(ctx)
		if errors.Is(err, store.ErrNotFound) {
			slog.Info("no recipient for upload notification", "image_id", img.ID)
			return
		}
		if err != nil {
			s.metrics.SideWriteFailed(metrics.SideWriteNotification)
			slog.Warn("failed to resolve notification recipient", "image_id", img.ID, "error", err)
			return
		}
		recipient = id
	}

	n := &models.Notification{
		NotificationType: models.NotificationImageUpload,
		Title:            fmt.Sprintf("New %s Image Upload", cases.Title(language.English).String(family)),
		Message: fmt.Sprintf("A new %s image %q was uploaded and classified as %s with %.1f%% confidence.",
			family, img.OriginalFilename, summary.Primary.Disease, summary.Primary.Confidence),
		RelatedImageID: &img.ID,
		UserID:         recipient,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.metrics.SideWriteFailed(metrics.SideWriteNotification)
		slog.Warn("failed to create notification", "image_id", img.ID, "error", err)
	}
}

func (s *Service) logPrediction(ctx context.Context, req Request, imageID *int64, start time.Time,
	probs []float32, labels []string, summary ranking.Summary, data *Response) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		s.metrics.SideWriteFailed(metrics.SideWritePredictionLog)
		slog.Warn("failed to encode prediction summary", "error", err)
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.metrics.SideWriteFailed(metrics.SideWritePredictionLog)
		slog.Warn("failed to encode prediction response", "error", err)
		return
	}

	scores := make([]float64, len(probs))
	for i, p := range probs {
		scores[i] = float64(p)
	}

	entry := &models.PredictionLog{
		ImageID:           imageID,
		Timestamp:         s.now().UTC(),
		ClientIP:          req.ClientIP,
		UserAgent:         req.UserAgent,
		ResponseTime:      s.now().Sub(start).Seconds(),
		Probabilities:     scores,
		Labels:            labels,
		PredictionSummary: summaryJSON,
		RawResponse:       raw,
	}
	if err := s.store.CreatePredictionLog(ctx, entry); err != nil {
		s.metrics.SideWriteFailed(metrics.SideWritePredictionLog)
		slog.Warn("failed to write prediction log", "image_id", imageID, "error", err)
	}
}

// parseLocation accepts the pair only when both coordinates parse.
func parseLocation(lat, lon string) (float64, float64, bool) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return 0, 0, false
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return 0, 0, false
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return 0, 0, false
	}
	return la, lo, true
}

func debugInfo(pre *imaging.Preprocessed) DebugInfo {
	return DebugInfo{
		ModelLoaded:   true,
		ImageSize:     [2]int{pre.OriginalWidth, pre.OriginalHeight},
		ProcessedSize: pre.ProcessedSize,
	}
}

func jsonList(v []any) json.RawMessage {
	if len(v) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func orEmpty(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
