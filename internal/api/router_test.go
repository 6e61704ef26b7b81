package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mangosense/mangosense-api/internal/api"
	"github.com/mangosense/mangosense-api/internal/api/handler"
	mw "github.com/mangosense/mangosense-api/internal/api/middleware"
	"github.com/mangosense/mangosense-api/internal/metrics"
	storemock "github.com/mangosense/mangosense-api/internal/store/mock"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminKey = "ms_admin_router_key_123456"
	readKey  = "ms_read__router_key_123456"
)

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                          { return nil }
func (c *stubCache) Ping(_ context.Context) error                                      { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- helpers ---

func seedKey(t *testing.T, st *storemock.Store, rawKey string, scope string) {
	t.Helper()
	ctx := context.Background()
	u := &models.User{Username: rawKey[:8], IsActive: true, IsStaff: scope == models.ScopeAdmin}
	require.NoError(t, st.CreateUser(ctx, u))
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateAPIKey(ctx, &models.APIKey{
		ID:        uuid.New(),
		UserID:    u.ID,
		Name:      scope,
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:mw.KeyPrefixLen],
		Scopes:    []string{scope},
	}))
}

type routerFixture struct {
	router      http.Handler
	store       *storemock.Store
	predictHits int
}

func newRouter(t *testing.T) *routerFixture {
	t.Helper()
	st := storemock.New()
	seedKey(t, st, adminKey, models.ScopeAdmin)
	seedKey(t, st, readKey, models.ScopeRead)

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &routerFixture{store: st}
	images := handler.NewImageHandler(st, nil)
	f.router = api.NewRouter(api.Dependencies{
		Auth:             mw.NewAuth(st),
		PredictRateLimit: mw.NewRateLimit(&stubCache{}, 30, "predict", m),
		Metrics:          m,

		LivenessHandler: handler.Liveness,
		PredictHandler: func(w http.ResponseWriter, r *http.Request) {
			f.predictHits++
			w.WriteHeader(http.StatusOK)
		},

		ListImages: images.List,
		GetImage:   images.Get,
	})
	return f
}

func (f *routerFixture) do(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Message
}

// ========================================
// Public routes
// ========================================

func TestRouter_Liveness(t *testing.T) {
	f := newRouter(t)
	for _, path := range []string{"/", "/health/"} {
		rec := f.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "mangosense-backend")
		assert.NotEmpty(t, rec.Header().Get(mw.RequestIDHeader))
	}
}

func TestRouter_Metrics(t *testing.T) {
	f := newRouter(t)
	f.do(http.MethodGet, "/health/", "")

	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mangosense_http_requests_total"))
}

func TestRouter_UnwiredHandlerIs501(t *testing.T) {
	f := newRouter(t)
	rec := f.do(http.MethodGet, "/api/health/", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRouter_NotFound(t *testing.T) {
	f := newRouter(t)
	rec := f.do(http.MethodGet, "/api/nope/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", message(t, rec))
}

// ========================================
// Predict
// ========================================

func TestRouter_PredictAnonymous(t *testing.T) {
	f := newRouter(t)
	rec := f.do(http.MethodPost, "/api/predict/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.predictHits)
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_PredictWithBadKey(t *testing.T) {
	f := newRouter(t)
	rec := f.do(http.MethodPost, "/api/predict/", "ms_wrong_key_000000")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, f.predictHits)
}

// ========================================
// Admin routes
// ========================================

func TestRouter_AdminRequiresKey(t *testing.T) {
	f := newRouter(t)
	rec := f.do(http.MethodGet, "/api/images/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", message(t, rec))
}

func TestRouter_AdminRequiresAdminScope(t *testing.T) {
	f := newRouter(t)
	rec := f.do(http.MethodGet, "/api/images/", readKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_AdminAllowed(t *testing.T) {
	f := newRouter(t)
	id := f.store.SeedImage(&models.MangoImage{PredictedClass: "Healthy"})

	rec := f.do(http.MethodGet, "/api/images/", adminKey)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/images/"+strconv.FormatInt(id, 10)+"/", adminKey)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
