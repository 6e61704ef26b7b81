package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mangosense/mangosense-api/internal/api/handler"
	"github.com/mangosense/mangosense-api/internal/media"
	storemock "github.com/mangosense/mangosense-api/internal/store/mock"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedImages(st *storemock.Store) (healthy, diseased int64) {
	healthy = st.SeedImage(&models.MangoImage{
		PredictedClass: "Healthy", DiseaseClassification: "Healthy", DiseaseType: "leaf", ConfidenceScore: 0.91,
	})
	diseased = st.SeedImage(&models.MangoImage{
		PredictedClass: "Anthracnose", DiseaseClassification: "Anthracnose", DiseaseType: "fruit", ConfidenceScore: 0.77,
	})
	return healthy, diseased
}

// ========================================
// List / Get / Delete
// ========================================

func TestImages_List(t *testing.T) {
	st := storemock.New()
	seedImages(st)
	h := handler.NewImageHandler(st, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/images/?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Page)
	assert.Equal(t, 1, env.Meta.Limit)
	assert.Equal(t, 2, env.Meta.Total)
	assert.True(t, env.Meta.HasNext)

	var images []models.MangoImage
	decodeData(t, env, &images)
	require.Len(t, images, 1)
}

func TestImages_ListFilters(t *testing.T) {
	st := storemock.New()
	seedImages(st)
	h := handler.NewImageHandler(st, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/images/?disease_type=fruit&is_verified=false", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var images []models.MangoImage
	decodeData(t, decode(t, rec), &images)
	require.Len(t, images, 1)
	assert.Equal(t, "Anthracnose", images[0].PredictedClass)
}

func TestImages_ListEmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	handler.NewImageHandler(storemock.New(), nil).List(rec, httptest.NewRequest(http.MethodGet, "/api/images/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode(t, rec).Data))
}

func TestImages_ListBadQuery(t *testing.T) {
	h := handler.NewImageHandler(storemock.New(), nil)
	for _, q := range []string{"is_verified=maybe", "user_id=abc"} {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/images/?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestImages_Get(t *testing.T) {
	st := storemock.New()
	healthy, _ := seedImages(st)
	h := handler.NewImageHandler(st, nil)

	rec := route(http.MethodGet, "/api/images/{id}/", h.Get,
		httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/images/%d/", healthy), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var img models.MangoImage
	decodeData(t, decode(t, rec), &img)
	assert.Equal(t, healthy, img.ID)

	rec = route(http.MethodGet, "/api/images/{id}/", h.Get, httptest.NewRequest(http.MethodGet, "/api/images/999/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Image not found", decode(t, rec).Message)

	rec = route(http.MethodGet, "/api/images/{id}/", h.Get, httptest.NewRequest(http.MethodGet, "/api/images/abc/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImages_Delete(t *testing.T) {
	st := storemock.New()
	healthy, _ := seedImages(st)
	h := handler.NewImageHandler(st, nil)

	path := fmt.Sprintf("/api/images/%d/", healthy)
	rec := route(http.MethodDelete, "/api/images/{id}/", h.Delete, httptest.NewRequest(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, st.Images(), 1)

	rec = route(http.MethodDelete, "/api/images/{id}/", h.Delete, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImages_DeleteRemovesStoredFile(t *testing.T) {
	root := t.TempDir()
	disk, err := media.NewDiskStore(root)
	require.NoError(t, err)
	ref, err := disk.Save(context.Background(), "leaf.png", []byte("png bytes"))
	require.NoError(t, err)

	st := storemock.New()
	id := st.SeedImage(&models.MangoImage{ImagePath: ref, PredictedClass: "Healthy"})
	h := handler.NewImageHandler(st, disk)

	rec := route(http.MethodDelete, "/api/images/{id}/", h.Delete,
		httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/images/%d/", id), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(ref)))
	assert.True(t, errors.Is(err, os.ErrNotExist), "stored file should be removed")
	assert.Empty(t, st.Images())
}

type failingMedia struct{ deleted []string }

func (m *failingMedia) Save(context.Context, string, []byte) (string, error) { return "", nil }
func (m *failingMedia) Delete(_ context.Context, ref string) error {
	m.deleted = append(m.deleted, ref)
	return errors.New("disk read-only")
}

func TestImages_DeleteIgnoresMediaFailure(t *testing.T) {
	st := storemock.New()
	id := st.SeedImage(&models.MangoImage{ImagePath: "mango_images/2026/10/17/a.png"})
	ms := &failingMedia{}

	rec := route(http.MethodDelete, "/api/images/{id}/", handler.NewImageHandler(st, ms).Delete,
		httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/images/%d/", id), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mango_images/2026/10/17/a.png"}, ms.deleted)
	assert.Empty(t, st.Images())
}

func TestImages_StoreFailure(t *testing.T) {
	st := storemock.New()
	st.FailOn["ListImages"] = errors.New("db down")

	rec := httptest.NewRecorder()
	handler.NewImageHandler(st, nil).List(rec, httptest.NewRequest(http.MethodGet, "/api/images/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// ========================================
// Update / Verify
// ========================================

func TestImages_Update(t *testing.T) {
	st := storemock.New()
	_, diseased := seedImages(st)
	h := handler.NewImageHandler(st, nil)
	path := fmt.Sprintf("/api/images/%d/", diseased)

	rec := route(http.MethodPatch, "/api/images/{id}/", h.Update,
		httptest.NewRequest(http.MethodPatch, path, jsonBody(t, map[string]any{"notes": "rechecked", "predicted_class": "Sooty Mold"})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var img models.MangoImage
	decodeData(t, decode(t, rec), &img)
	assert.Equal(t, "rechecked", img.Notes)
	assert.Equal(t, "Sooty Mold", img.PredictedClass)
	assert.Equal(t, 0.77, img.ConfidenceScore, "confidence is untouched")
}

func TestImages_UpdateRejectsFields(t *testing.T) {
	st := storemock.New()
	_, diseased := seedImages(st)
	h := handler.NewImageHandler(st, nil)
	path := fmt.Sprintf("/api/images/%d/", diseased)

	tests := []struct {
		name     string
		body     any
		wantErrs []string
	}{
		{"not allow-listed", map[string]any{"user_id": 9, "image_path": "x", "notes": "ok"}, []string{"Invalid fields: [image_path, user_id]"}},
		{"wrong type", map[string]any{"is_verified": "yes"}, nil},
		{"out of range", map[string]any{"confidence_score": 1.5}, nil},
		{"empty", map[string]any{}, []string{}},
		{"malformed", "{", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := route(http.MethodPatch, "/api/images/{id}/", h.Update,
				httptest.NewRequest(http.MethodPatch, path, jsonBody(t, tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.wantErrs != nil {
				assert.Equal(t, tt.wantErrs, decode(t, rec).Errors)
			}
		})
	}

	img, err := st.GetImage(t.Context(), diseased)
	require.NoError(t, err)
	assert.Empty(t, img.Notes, "rejected updates write nothing")
}

func TestImages_Verify(t *testing.T) {
	st := storemock.New()
	_, diseased := seedImages(st)
	h := handler.NewImageHandler(st, nil)
	path := fmt.Sprintf("/api/images/%d/verify/", diseased)

	req := withUser(httptest.NewRequest(http.MethodPost, path, jsonBody(t, map[string]any{"notes": "confirmed in field"})), 7)
	rec := route(http.MethodPost, "/api/images/{id}/verify/", h.Verify, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var img models.MangoImage
	decodeData(t, decode(t, rec), &img)
	assert.True(t, img.IsVerified)
	require.NotNil(t, img.VerifiedBy)
	assert.Equal(t, int64(7), *img.VerifiedBy)
	assert.NotNil(t, img.VerifiedDate)
	assert.Equal(t, "confirmed in field", img.Notes)
}

func TestImages_VerifyWithoutBody(t *testing.T) {
	st := storemock.New()
	healthy, _ := seedImages(st)
	h := handler.NewImageHandler(st, nil)

	req := withUser(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/images/%d/verify/", healthy), nil), 3)
	rec := route(http.MethodPost, "/api/images/{id}/verify/", h.Verify, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = route(http.MethodPost, "/api/images/{id}/verify/", h.Verify,
		withUser(httptest.NewRequest(http.MethodPost, "/api/images/404/verify/", nil), 3))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ========================================
// Bulk update
// ========================================

func TestImages_BulkUpdate(t *testing.T) {
	st := storemock.New()
	healthy, diseased := seedImages(st)
	h := handler.NewImageHandler(st, nil)

	rec := httptest.NewRecorder()
	h.BulkUpdate(rec, httptest.NewRequest(http.MethodPost, "/api/images/bulk-update/", jsonBody(t, map[string]any{
		"image_ids": []int64{healthy, diseased},
		"updates":   map[string]any{"is_verified": true, "disease_type": "leaf"},
	})))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		UpdatedCount int64 `json:"updated_count"`
	}
	decodeData(t, decode(t, rec), &data)
	assert.Equal(t, int64(2), data.UpdatedCount)
	for _, img := range st.Images() {
		assert.True(t, img.IsVerified)
		assert.Equal(t, "leaf", img.DiseaseType)
	}
}

func TestImages_BulkUpdateValidation(t *testing.T) {
	st := storemock.New()
	healthy, _ := seedImages(st)
	h := handler.NewImageHandler(st, nil)

	tests := []struct {
		name     string
		body     any
		wantErrs []string
	}{
		{
			name:     "missing ids",
			body:     map[string]any{"image_ids": []int64{9001, healthy, 9000}, "updates": map[string]any{"is_verified": true}},
			wantErrs: []string{"Images with IDs [9000, 9001] do not exist"},
		},
		{
			name:     "invalid fields",
			body:     map[string]any{"image_ids": []int64{healthy}, "updates": map[string]any{"notes": "x", "disease_classification": "y"}},
			wantErrs: []string{"Invalid fields: [disease_classification, notes]"},
		},
		{
			name: "both",
			body: map[string]any{"image_ids": []int64{9000}, "updates": map[string]any{"user_id": 1}},
			wantErrs: []string{
				"Images with IDs [9000] do not exist",
				"Invalid fields: [user_id]",
			},
		},
		{
			name:     "empty",
			body:     map[string]any{"image_ids": []int64{}, "updates": map[string]any{}},
			wantErrs: []string{"image_ids must be a non-empty list", "updates must be a non-empty object"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.BulkUpdate(rec, httptest.NewRequest(http.MethodPost, "/api/images/bulk-update/", jsonBody(t, tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decode(t, rec)
			assert.Equal(t, "Invalid bulk update request", env.Message)
			assert.Equal(t, tt.wantErrs, env.Errors)
		})
	}

	for _, img := range st.Images() {
		assert.False(t, img.IsVerified, "rejected bulk updates write nothing")
	}
}

func TestImages_BulkUpdateWrongValueType(t *testing.T) {
	st := storemock.New()
	healthy, _ := seedImages(st)

	rec := httptest.NewRecorder()
	handler.NewImageHandler(st, nil).BulkUpdate(rec, httptest.NewRequest(http.MethodPost, "/api/images/bulk-update/", jsonBody(t, map[string]any{
		"image_ids": []int64{healthy},
		"updates":   map[string]any{"confidence_score": "high"},
	})))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid field value", decode(t, rec).Message)
}
