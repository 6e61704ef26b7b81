package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/cache"
	"github.com/mangosense/mangosense-api/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName   = "mangosense-backend"
	apiVersion    = "1.0.0"
	healthTimeout = 5 * time.Second
)

// Liveness answers GET / and GET /health/ without touching any dependency.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	response.Raw(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NewHealthHandler returns the readiness check for GET /api/health/. It pings
// the database, counts images and pings Redis concurrently. ready gates the
// check until the server has finished starting.
func NewHealthHandler(st store.Store, c cache.Cache, ready *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)
		if ready != nil && !ready.Load() {
			response.Raw(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "starting",
				"timestamp": now,
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		var imageCount int
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := st.Ping(gctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			n, err := st.CountImages(gctx)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			imageCount = n
			return nil
		})
		g.Go(func() error {
			if err := c.Ping(gctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			slog.Warn("health check failed", "error", err)
			response.Raw(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": now,
			})
			return
		}

		response.Raw(w, http.StatusOK, map[string]any{
			"status":      "healthy",
			"database":    "connected",
			"cache":       "connected",
			"image_count": imageCount,
			"timestamp":   now,
			"version":     apiVersion,
		})
	}
}
