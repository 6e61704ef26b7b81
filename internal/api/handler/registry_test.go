package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mangosense/mangosense-api/internal/api/handler"
	"github.com/mangosense/mangosense-api/internal/catalog"
	storemock "github.com/mangosense/mangosense-api/internal/store/mock"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========================================
// Profiles
// ========================================

func seedUser(t *testing.T, st *storemock.Store, username string) int64 {
	t.Helper()
	u := &models.User{Username: username, IsActive: true}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u.ID
}

func TestProfiles_CreateGetUpdate(t *testing.T) {
	st := storemock.New()
	uid := seedUser(t, st, "farmer")
	h := handler.NewProfileHandler(st)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/profiles/", jsonBody(t, map[string]any{
		"user_id": uid, "barangay": "Poblacion", "city": "Jordan", "province": "Guimaras",
	})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]any
	decodeData(t, decode(t, rec), &created)
	assert.Equal(t, "Poblacion, Jordan, Guimaras", created["full_address"])
	assert.Equal(t, float64(uid), created["user_id"])

	path := fmt.Sprintf("/api/profiles/%d/", uid)
	rec = route(http.MethodGet, "/api/profiles/{userID}/", h.Get, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = route(http.MethodPut, "/api/profiles/{userID}/", h.Update,
		httptest.NewRequest(http.MethodPut, path, jsonBody(t, map[string]any{"address": "Purok 3", "phone": "0917"})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated map[string]any
	decodeData(t, decode(t, rec), &updated)
	assert.Equal(t, "Purok 3", updated["full_address"], "falls back to the free-text address")
	assert.Equal(t, "0917", updated["phone"])
}

func TestProfiles_CreateErrors(t *testing.T) {
	st := storemock.New()
	uid := seedUser(t, st, "farmer")
	h := handler.NewProfileHandler(st)
	require.NoError(t, st.CreateProfile(context.Background(), &models.UserProfile{UserID: uid}))

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"missing user id", map[string]any{"city": "Iloilo"}, http.StatusBadRequest},
		{"unknown user", map[string]any{"user_id": 999}, http.StatusBadRequest},
		{"duplicate", map[string]any{"user_id": uid}, http.StatusConflict},
		{"malformed", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/profiles/", jsonBody(t, tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestProfiles_NotFound(t *testing.T) {
	h := handler.NewProfileHandler(storemock.New())

	rec := route(http.MethodGet, "/api/profiles/{userID}/", h.Get, httptest.NewRequest(http.MethodGet, "/api/profiles/5/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Profile not found", decode(t, rec).Message)

	rec = route(http.MethodPut, "/api/profiles/{userID}/", h.Update,
		httptest.NewRequest(http.MethodPut, "/api/profiles/5/", jsonBody(t, map[string]any{"city": "x"})))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfiles_List(t *testing.T) {
	st := storemock.New()
	for _, name := range []string{"a", "b", "c"} {
		uid := seedUser(t, st, name)
		require.NoError(t, st.CreateProfile(context.Background(), &models.UserProfile{UserID: uid, City: "Iloilo"}))
	}

	rec := httptest.NewRecorder()
	handler.NewProfileHandler(st).List(rec, httptest.NewRequest(http.MethodGet, "/api/profiles/?page=2&limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.Total)
	assert.False(t, env.Meta.HasNext)
	var profiles []map[string]any
	decodeData(t, env, &profiles)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Iloilo", profiles[0]["full_address"])
}

// ========================================
// Model registry
// ========================================

func TestModels_CreateAndActivate(t *testing.T) {
	st := storemock.New()
	h := handler.NewModelHandler(st, catalog.Default())

	create := func(version string, active bool) int64 {
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/models/", jsonBody(t, map[string]any{
			"name": "leaf-mobilenetv2", "version": version, "family": "leaf",
			"file_path": "models/leaf-mobilenetv2.onnx", "accuracy": 0.93,
			"training_date": "2024-03-01T00:00:00Z", "is_active": active,
		})))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var m models.MLModel
		decodeData(t, decode(t, rec), &m)
		return m.ID
	}
	first := create("v1", true)
	second := create("v2", false)

	rec := route(http.MethodPost, "/api/models/{id}/activate/", h.Activate,
		httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/models/%d/activate/", second), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/models/?active=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var active []models.MLModel
	decodeData(t, decode(t, rec), &active)
	require.Len(t, active, 1)
	assert.Equal(t, second, active[0].ID)
	assert.NotEqual(t, first, active[0].ID)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/models/", nil))
	var all []models.MLModel
	decodeData(t, decode(t, rec), &all)
	assert.Len(t, all, 2)
}

func TestModels_CreateValidation(t *testing.T) {
	h := handler.NewModelHandler(storemock.New(), catalog.Default())

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/models/", jsonBody(t, map[string]any{
		"family": "stem", "accuracy": 1.4, "training_date": "yesterday",
	})))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{
		"name is required",
		"version is required",
		"family must be leaf or fruit",
		"accuracy must be between 0 and 1",
		"training_date must be a valid RFC3339 timestamp",
	}, decode(t, rec).Errors)
}

func TestModels_Duplicate(t *testing.T) {
	st := storemock.New()
	h := handler.NewModelHandler(st, catalog.Default())
	body := map[string]any{"name": "fruit-mobilenetv2", "version": "v1", "family": "fruit"}

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/models/", jsonBody(t, body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/models/", jsonBody(t, body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestModels_ActivateUnknown(t *testing.T) {
	h := handler.NewModelHandler(storemock.New(), catalog.Default())
	rec := route(http.MethodPost, "/api/models/{id}/activate/", h.Activate,
		httptest.NewRequest(http.MethodPost, "/api/models/77/activate/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ========================================
// Prediction logs
// ========================================

func TestPredictionLogs_List(t *testing.T) {
	st := storemock.New()
	imageID := int64(12)
	ctx := context.Background()
	require.NoError(t, st.CreatePredictionLog(ctx, &models.PredictionLog{ImageID: &imageID, ClientIP: "192.0.2.1"}))
	require.NoError(t, st.CreatePredictionLog(ctx, &models.PredictionLog{ClientIP: "192.0.2.2"}))
	h := handler.NewPredictionLogsHandler(st)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/prediction-logs/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, 2, env.Meta.Total)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/prediction-logs/?image_id=12", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []models.PredictionLog
	decodeData(t, decode(t, rec), &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "192.0.2.1", logs[0].ClientIP)
}

func TestPredictionLogs_Errors(t *testing.T) {
	st := storemock.New()
	h := handler.NewPredictionLogsHandler(st)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/prediction-logs/?image_id=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	st.FailOn["ListPredictionLogs"] = errors.New("db down")
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/prediction-logs/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
