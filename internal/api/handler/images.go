package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/mangosense/mangosense-api/internal/api/middleware"
	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/media"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/mangosense/mangosense-api/pkg/sqlbuild"
)

// ImageHandler serves the admin CRUD endpoints for prediction records.
type ImageHandler struct {
	store store.Store
	media media.Store
}

// NewImageHandler builds the handler. A nil ms leaves stored files in place on delete.
func NewImageHandler(st store.Store, ms media.Store) *ImageHandler {
	return &ImageHandler{store: st, media: ms}
}

// List handles GET /api/images/.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	isVerified, err := queryBool(r, "is_verified")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid query parameters", err.Error())
		return
	}
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid query parameters", err.Error())
		return
	}

	page, limit := pageParams(r)
	limit, _ = sqlbuild.Paginate(page, limit)
	if page <= 0 {
		page = 1
	}

	images, total, err := h.store.ListImages(r.Context(), models.ImageFilter{
		DiseaseType:           queryString(r, "disease_type"),
		DiseaseClassification: queryString(r, "disease_classification"),
		IsVerified:            isVerified,
		UserID:                userID,
		Page:                  page,
		Limit:                 limit,
	})
	if err != nil {
		slog.Error("failed to list images", "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to list images")
		return
	}
	if images == nil {
		images = []*models.MangoImage{}
	}
	response.Collection(w, "Images retrieved successfully", images, response.NewMeta(page, limit, total))
}

// Get handles GET /api/images/{id}/.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid image ID")
		return
	}
	img, err := h.store.GetImage(r.Context(), id)
	if err != nil {
		writeImageError(w, err, "Failed to get image")
		return
	}
	response.OK(w, "Image retrieved successfully", img)
}

// Update handles PATCH /api/images/{id}/. Only allow-listed fields may change.
func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid image ID")
		return
	}

	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(fields) == 0 {
		response.Error(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if bad := store.ImageUpdateColumns.Invalid(fields); len(bad) > 0 {
		response.Error(w, http.StatusBadRequest, "Invalid update request", "Invalid fields: "+bracketList(bad))
		return
	}

	img, err := h.store.UpdateImage(r.Context(), id, fields)
	if err != nil {
		writeImageError(w, err, "Failed to update image")
		return
	}
	response.OK(w, "Image updated successfully", img)
}

// Delete handles DELETE /api/images/{id}/.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid image ID")
		return
	}
	img, err := h.store.GetImage(r.Context(), id)
	if err != nil {
		writeImageError(w, err, "Failed to delete image")
		return
	}
	if err := h.store.DeleteImage(r.Context(), id); err != nil {
		writeImageError(w, err, "Failed to delete image")
		return
	}
	if h.media != nil && img.ImagePath != "" {
		if err := h.media.Delete(context.WithoutCancel(r.Context()), img.ImagePath); err != nil {
			slog.Warn("failed to remove stored image", "image_id", id, "ref", img.ImagePath, "error", err)
		}
	}
	response.OK(w, "Image deleted successfully", nil)
}

// Verify handles POST /api/images/{id}/verify/. The caller becomes the verifier.
func (h *ImageHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid image ID")
		return
	}

	var body struct {
		Notes *string `json:"notes"`
	}
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var verifier *int64
	if uid, ok := mw.GetUserID(r); ok {
		verifier = &uid
	}

	img, err := h.store.VerifyImage(r.Context(), id, verifier, body.Notes)
	if err != nil {
		writeImageError(w, err, "Failed to verify image")
		return
	}
	response.OK(w, "Image verified successfully", img)
}

type bulkUpdateRequest struct {
	ImageIDs []int64        `json:"image_ids"`
	Updates  map[string]any `json:"updates"`
}

// BulkUpdate handles POST /api/images/bulk-update/. Every id must exist and
// every field must be in the bulk allow-list; both problems are reported together.
func (h *ImageHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var errs []string
	if len(req.ImageIDs) == 0 {
		errs = append(errs, "image_ids must be a non-empty list")
	}
	if len(req.Updates) == 0 {
		errs = append(errs, "updates must be a non-empty object")
	}
	if len(errs) > 0 {
		response.Error(w, http.StatusBadRequest, "Invalid bulk update request", errs...)
		return
	}

	missing, err := h.store.MissingImageIDs(r.Context(), req.ImageIDs)
	if err != nil {
		slog.Error("failed to check image ids", "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to update images")
		return
	}
	if len(missing) > 0 {
		errs = append(errs, "Images with IDs "+bracketList(missing)+" do not exist")
	}
	if bad := store.BulkUpdateColumns.Invalid(req.Updates); len(bad) > 0 {
		errs = append(errs, "Invalid fields: "+bracketList(bad))
	}
	if len(errs) > 0 {
		response.Error(w, http.StatusBadRequest, "Invalid bulk update request", errs...)
		return
	}

	n, err := h.store.BulkUpdateImages(r.Context(), req.ImageIDs, req.Updates)
	if err != nil {
		writeImageError(w, err, "Failed to update images")
		return
	}
	response.OK(w, "Images updated successfully", map[string]any{
		"updated_count": n,
		"image_ids":     req.ImageIDs,
	})
}

func writeImageError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "Image not found")
	case errors.Is(err, store.ErrInvalidField):
		response.Error(w, http.StatusBadRequest, "Invalid field value", err.Error())
	default:
		slog.Error(message, "error", err)
		response.Error(w, http.StatusInternalServerError, message)
	}
}
