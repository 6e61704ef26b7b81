package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/mangosense/mangosense-api/internal/api/middleware"
	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/metrics"
	"github.com/mangosense/mangosense-api/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth             *mw.Auth
	PredictRateLimit *mw.RateLimit
	Metrics          *metrics.Metrics

	LivenessHandler    http.HandlerFunc
	HealthHandler      http.HandlerFunc
	ModelStatusHandler http.Handler
	PredictHandler     http.HandlerFunc

	ListImages       http.HandlerFunc
	GetImage         http.HandlerFunc
	UpdateImage      http.HandlerFunc
	DeleteImage      http.HandlerFunc
	VerifyImage      http.HandlerFunc
	BulkUpdateImages http.HandlerFunc

	ListProfiles  http.HandlerFunc
	CreateProfile http.HandlerFunc
	GetProfile    http.HandlerFunc
	UpdateProfile http.HandlerFunc

	ListModels    http.HandlerFunc
	CreateModel   http.HandlerFunc
	ActivateModel http.HandlerFunc

	ListPredictionLogs http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Instrument(deps.Metrics))

	// Public probes
	r.Get("/", orNotImplemented(deps.LivenessHandler))
	r.Get("/health/", orNotImplemented(deps.LivenessHandler))
	r.Get("/api/health/", orNotImplemented(deps.HealthHandler))
	r.Method(http.MethodGet, "/api/model-status/", orNotImplementedHandler(deps.ModelStatusHandler))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// Predict accepts anonymous uploads; a key only attributes the uploader.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.OptionalAuthenticate)
		if deps.PredictRateLimit != nil {
			r.Use(deps.PredictRateLimit.Limit)
		}

		r.Post("/api/predict/", orNotImplemented(deps.PredictHandler))
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

		r.Get("/api/images/", orNotImplemented(deps.ListImages))
		r.Post("/api/images/bulk-update/", orNotImplemented(deps.BulkUpdateImages))
		r.Get("/api/images/{id}/", orNotImplemented(deps.GetImage))
		r.Patch("/api/images/{id}/", orNotImplemented(deps.UpdateImage))
		r.Delete("/api/images/{id}/", orNotImplemented(deps.DeleteImage))
		r.Post("/api/images/{id}/verify/", orNotImplemented(deps.VerifyImage))

		r.Get("/api/profiles/", orNotImplemented(deps.ListProfiles))
		r.Post("/api/profiles/", orNotImplemented(deps.CreateProfile))
		r.Get("/api/profiles/{userID}/", orNotImplemented(deps.GetProfile))
		r.Put("/api/profiles/{userID}/", orNotImplemented(deps.UpdateProfile))

		r.Get("/api/models/", orNotImplemented(deps.ListModels))
		r.Post("/api/models/", orNotImplemented(deps.CreateModel))
		r.Post("/api/models/{id}/activate/", orNotImplemented(deps.ActivateModel))

		r.Get("/api/prediction-logs/", orNotImplemented(deps.ListPredictionLogs))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return notImplemented
}

func orNotImplementedHandler(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(notImplemented)
}

func notImplemented(w http.ResponseWriter, _ *http.Request) {
	response.Error(w, http.StatusNotImplemented, "Endpoint not yet implemented")
}
