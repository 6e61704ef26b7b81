package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// KeyPrefixLen is the number of leading key characters stored in clear for lookup.
const KeyPrefixLen = 8

// Auth provides authentication and scope-checking middleware.
type Auth struct {
	store store.Store
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate requires a valid Bearer API key and stores it in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized, "Authentication required", "Missing or invalid Authorization header")
			return
		}
		a.serveWithKey(w, r, rawKey, next)
	})
}

// OptionalAuthenticate attributes the request to a key when one is sent and
// passes anonymous requests through. A key that is sent but invalid is rejected.
func (a *Auth) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized, "Authentication required", "Missing or invalid Authorization header")
			return
		}
		a.serveWithKey(w, r, rawKey, next)
	})
}

func (a *Auth) serveWithKey(w http.ResponseWriter, r *http.Request, rawKey string, next http.Handler) {
	if len(rawKey) < KeyPrefixLen {
		response.Error(w, http.StatusUnauthorized, "Authentication required", "Invalid API key format")
		return
	}

	key, err := a.lookup(r.Context(), rawKey)
	if err != nil {
		slog.Error("api key lookup failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to validate API key")
		return
	}
	if key == nil {
		response.Error(w, http.StatusUnauthorized, "Authentication required", "Invalid API key")
		return
	}

	// Update last_used_at async
	go func() {
		if err := a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID); err != nil {
			slog.Warn("failed to touch api key", "key_prefix", key.KeyPrefix, "error", err)
		}
	}()

	next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
}

// lookup finds the key whose bcrypt hash matches rawKey. It returns nil, nil when none does.
func (a *Auth) lookup(ctx context.Context, rawKey string) (*models.APIKey, error) {
	keys, err := a.store.GetAPIKeyByPrefix(ctx, rawKey[:KeyPrefixLen])
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
			return key, nil
		}
	}
	return nil, nil
}

// RequireScope returns middleware that checks whether the authenticated
// API key has the specified scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := GetAPIKey(r)
			if !ok {
				response.Error(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !key.HasScope(scope) {
				response.Error(w, http.StatusForbidden, "Insufficient permissions", "scope "+scope+" is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
