package middleware

import (
	"context"
	"net/http"

	"github.com/mangosense/mangosense-api/pkg/models"
)

type contextKey string

const (
	apiKeyKey    contextKey = "api_key"
	requestIDKey contextKey = "request_id"
)

// WithAPIKey stores the authenticated key on ctx.
func WithAPIKey(ctx context.Context, key *models.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey, key)
}

// GetAPIKey returns the key set by Authenticate, if any.
func GetAPIKey(r *http.Request) (*models.APIKey, bool) {
	key, ok := r.Context().Value(apiKeyKey).(*models.APIKey)
	return key, ok && key != nil
}

// GetUserID returns the id of the user owning the authenticated key.
func GetUserID(r *http.Request) (int64, bool) {
	key, ok := GetAPIKey(r)
	if !ok {
		return 0, false
	}
	return key.UserID, true
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
