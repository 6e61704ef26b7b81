package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	response.OK(w, "Image processed successfully", map[string]string{"disease": "Healthy"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Image processed successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "Healthy", data["disease"])
	assert.NotContains(t, body, "errors")
	assert.NotContains(t, body, "meta")
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()
	response.Created(w, "Profile created", map[string]int{"id": 7})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(7), body["data"].(map[string]any)["id"])
}

func TestCollection(t *testing.T) {
	w := httptest.NewRecorder()
	items := []map[string]string{{"id": "1"}, {"id": "2"}}

	response.Collection(w, "Images retrieved", items, response.NewMeta(1, 2, 5))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"].([]any), 2)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["page"])
	assert.Equal(t, float64(2), meta["limit"])
	assert.Equal(t, float64(5), meta["total"])
	assert.Equal(t, true, meta["has_next"])
}

func TestNewMeta_LastPage(t *testing.T) {
	assert.False(t, response.NewMeta(3, 2, 5).HasNext)
	assert.False(t, response.NewMeta(1, 20, 0).HasNext)
	assert.True(t, response.NewMeta(1, 20, 21).HasNext)
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusBadRequest, "No image uploaded", "Image file is required")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No image uploaded", body["message"])
	assert.Equal(t, []any{"Image file is required"}, body["errors"])
	assert.NotContains(t, body, "data")
}

func TestError_NoDetailsEncodesEmptyList(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusNotFound, "Image not found")

	body := decode(t, w)
	assert.Equal(t, []any{}, body["errors"])
}

func TestRaw(t *testing.T) {
	w := httptest.NewRecorder()
	response.Raw(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "starting", decode(t, w)["status"])
}
