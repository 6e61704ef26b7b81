package handler

import (
	"log/slog"
	"net/http"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/mangosense/mangosense-api/pkg/sqlbuild"
)

// NewPredictionLogsHandler returns an http.HandlerFunc for GET /api/prediction-logs/.
// The audit log is read-only.
func NewPredictionLogsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		imageID, err := queryInt64(r, "image_id")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid query parameters", err.Error())
			return
		}

		page, limit := pageParams(r)
		limit, _ = sqlbuild.Paginate(page, limit)
		if page <= 0 {
			page = 1
		}

		logs, total, err := st.ListPredictionLogs(r.Context(), store.PredictionLogFilter{
			ImageID: imageID,
			Page:    page,
			Limit:   limit,
		})
		if err != nil {
			slog.Error("failed to list prediction logs", "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to list prediction logs")
			return
		}
		if logs == nil {
			logs = []*models.PredictionLog{}
		}
		response.Collection(w, "Prediction logs retrieved successfully", logs, response.NewMeta(page, limit, total))
	}
}
