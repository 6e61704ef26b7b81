package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	mw "github.com/mangosense/mangosense-api/internal/api/middleware"
	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/imaging"
	"github.com/mangosense/mangosense-api/internal/prediction"
)

const multipartMemory = 8 << 20

// Predictor defines the interface the predict handler depends on.
type Predictor interface {
	Predict(ctx context.Context, req prediction.Request) (*prediction.Result, error)
}

// NewPredictHandler returns an http.HandlerFunc for POST /api/predict/.
// Bodies over maxRequestBytes are rejected as an invalid image, reported
// against the maxImageBytes ceiling.
func NewPredictHandler(svc Predictor, maxImageBytes, maxRequestBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxRequestBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			if isTooLarge(err) {
				response.Error(w, http.StatusBadRequest, "Invalid image file", imaging.SizeLimitMessage(maxImageBytes))
				return
			}
			response.Error(w, http.StatusBadRequest, "No image uploaded", "Image file is required")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("image")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "No image uploaded", "Image file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid image file", "Could not read uploaded image")
			return
		}

		req := parsePredictForm(r)
		req.Image = data
		req.Filename = header.Filename
		req.Size = header.Size
		if uid, ok := mw.GetUserID(r); ok {
			req.UserID = &uid
		}
		req.ClientIP = mw.ClientIP(r)
		req.UserAgent = r.UserAgent()

		result, err := svc.Predict(r.Context(), req)
		if err != nil {
			writePredictError(w, err)
			return
		}
		response.OK(w, result.Message, result.Data)
	}
}

// parsePredictForm reads the non-file predict fields. Malformed JSON fields are dropped.
func parsePredictForm(r *http.Request) prediction.Request {
	detectionType := strings.TrimSpace(r.FormValue("detection_type"))
	if detectionType == "" {
		detectionType = "leaf"
	}
	return prediction.Request{
		DetectionType:             detectionType,
		Latitude:                  r.FormValue("latitude"),
		Longitude:                 r.FormValue("longitude"),
		LocationAccuracyConfirmed: formBool(r, "location_accuracy_confirmed"),
		LocationSource:            r.FormValue("location_source"),
		LocationAddress:           r.FormValue("location_address"),
		PreviewOnly:               formBool(r, "preview_only"),
		IsDetectionCorrect:        formBool(r, "is_detection_correct"),
		UserFeedback:              r.FormValue("user_feedback"),
		DetectedDisease:           r.FormValue("detected_disease"),
		SelectedSymptoms:          formList(r, "selected_symptoms"),
		PrimarySymptoms:           formList(r, "primary_symptoms"),
		AlternativeSymptoms:       formList(r, "alternative_symptoms"),
		TopDiseases:               formList(r, "top_diseases"),
		SymptomsData:              formObject(r, "symptoms_data"),
	}
}

func formBool(r *http.Request, name string) bool {
	return strings.ToLower(strings.TrimSpace(r.FormValue(name))) == "true"
}

func formList(r *http.Request, name string) []any {
	raw := r.FormValue(name)
	if raw == "" {
		return nil
	}
	var out []any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slog.Debug("ignoring malformed form field", "field", name, "error", err)
		return nil
	}
	return out
}

func formObject(r *http.Request, name string) map[string]any {
	raw := r.FormValue(name)
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slog.Debug("ignoring malformed form field", "field", name, "error", err)
		return nil
	}
	return out
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func writePredictError(w http.ResponseWriter, err error) {
	var failure *prediction.Failure
	if !errors.As(err, &failure) {
		slog.Error("prediction failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "Prediction failed", err.Error())
		return
	}
	status := http.StatusInternalServerError
	if errors.Is(failure, prediction.ErrInvalidImage) {
		status = http.StatusBadRequest
	}
	response.Error(w, status, failure.Message, failure.Details...)
}
