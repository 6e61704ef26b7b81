// Package main is the entrypoint for the MangoSense API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mangosense/mangosense-api/internal/api"
	"github.com/mangosense/mangosense-api/internal/api/handler"
	mw "github.com/mangosense/mangosense-api/internal/api/middleware"
	"github.com/mangosense/mangosense-api/internal/cache"
	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/internal/inference"
	"github.com/mangosense/mangosense-api/internal/media"
	"github.com/mangosense/mangosense-api/internal/metrics"
	"github.com/mangosense/mangosense-api/internal/prediction"
	"github.com/mangosense/mangosense-api/internal/preflight"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "inference_backend", cfg.Inference.Backend, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create inference backend
	backend, err := inference.NewBackend(cfg.Inference)
	if err != nil {
		return fmt.Errorf("create inference backend: %w", err)
	}
	slog.Info("inference backend initialized", "backend", backend.Name())

	// 6. Media storage and metrics
	mediaStore, err := media.NewDiskStore(cfg.Upload.MediaDir)
	if err != nil {
		return fmt.Errorf("create media store: %w", err)
	}
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	// 7. Build router with dependencies
	var ready atomic.Bool
	c := components{
		cfg:     cfg,
		catalog: catalog.Default(),
		store:   store.NewPostgresStore(pool),
		cache:   redisCache,
		backend: backend,
		media:   mediaStore,
		metrics: m,
		ready:   &ready,
	}
	router := newRouter(c)

	// Artifacts are loaded per request, so a missing one is logged rather than fatal.
	statuses, ok := preflight.CheckModels(ctx, c.catalog, backend, c.locator())
	for _, st := range statuses {
		if !st.OK {
			slog.Warn("model artifact unavailable", "family", st.Family, "path", st.Path, "problem", st.Problem)
		}
	}
	if ok {
		slog.Info("model artifacts present")
	}

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	ready.Store(true)

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}
	ready.Store(false)

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// components are the long-lived pieces the router is built from.
type components struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	store   store.Store
	cache   cache.Cache
	backend models.InferenceBackend
	media   media.Store
	metrics *metrics.Metrics
	ready   *atomic.Bool
}

func (c components) locator() *inference.Locator {
	return inference.NewLocator(c.cfg.Inference, c.backend.Extension())
}

// newRouter wires every handler and middleware.
func newRouter(c components) http.Handler {
	locator := c.locator()
	svc := prediction.NewService(c.catalog, c.backend, locator, c.store, c.media, prediction.Options{
		Threshold:     c.cfg.Inference.ConfidenceThreshold,
		MaxImageBytes: c.cfg.Upload.MaxImageBytes,
		Metrics:       c.metrics,
	})

	images := handler.NewImageHandler(c.store, c.media)
	profiles := handler.NewProfileHandler(c.store)
	registry := handler.NewModelHandler(c.store, c.catalog)
	limiter := mw.NewRateLimit(c.cache, c.cfg.Server.PredictRateLimit, "predict", c.metrics).
		TrustProxies(c.cfg.Server.TrustedProxies)

	return api.NewRouter(api.Dependencies{
		Auth:             mw.NewAuth(c.store),
		PredictRateLimit: limiter,
		Metrics:          c.metrics,

		LivenessHandler:    handler.Liveness,
		HealthHandler:      handler.NewHealthHandler(c.store, c.cache, c.ready),
		ModelStatusHandler: handler.NewModelStatusHandler(c.catalog, c.backend, locator, c.store, c.cache),
		PredictHandler:     handler.NewPredictHandler(svc, c.cfg.Upload.MaxImageBytes, c.cfg.Upload.MaxRequestBytes),

		ListImages:       images.List,
		GetImage:         images.Get,
		UpdateImage:      images.Update,
		DeleteImage:      images.Delete,
		VerifyImage:      images.Verify,
		BulkUpdateImages: images.BulkUpdate,

		ListProfiles:  profiles.List,
		CreateProfile: profiles.Create,
		GetProfile:    profiles.Get,
		UpdateProfile: profiles.Update,

		ListModels:    registry.List,
		CreateModel:   registry.Create,
		ActivateModel: registry.Activate,

		ListPredictionLogs: handler.NewPredictionLogsHandler(c.store),
	})
}
