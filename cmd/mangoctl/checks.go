package main

import (
	"context"
	"fmt"
	"io"

	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/internal/inference"
	"github.com/mangosense/mangosense-api/internal/preflight"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/spf13/cobra"
)

func checkModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-models",
		Short: "Verify every model artifact is present and not a large-file pointer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadInference()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			backend, err := inference.NewBackend(cfg)
			if err != nil {
				return err
			}
			return checkModels(cmd.Context(), cmd.OutOrStdout(), catalog.Default(), backend,
				inference.NewLocator(cfg, backend.Extension()))
		},
	}
}

func checkModels(ctx context.Context, w io.Writer, cat *catalog.Catalog, backend models.InferenceBackend,
	locator *inference.Locator) error {
	statuses, ok := preflight.CheckModels(ctx, cat, backend, locator)
	preflight.WriteModels(w, statuses)
	if !ok {
		fmt.Fprintln(w, "Model artifacts are incomplete. Fetch them (git lfs pull) and rerun.")
		return errChecksFailed
	}
	fmt.Fprintln(w, "All model artifacts present.")
	return nil
}

func startupCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "startup-check",
		Short: "Report configuration, database, artifact and memory readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(out, "✗ config: %v\n", err)
				return errChecksFailed
			}
			fmt.Fprintln(out, "✓ config: loaded")

			backend, err := inference.NewBackend(cfg.Inference)
			if err != nil {
				return err
			}

			deps := preflight.StartupDeps{
				Catalog: catalog.Default(),
				Backend: backend,
				Locator: inference.NewLocator(cfg.Inference, backend.Extension()),
			}
			pool, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				fmt.Fprintf(out, "✗ database: %v\n", err)
				return errChecksFailed
			}
			defer pool.Close()
			deps.Database = pool

			return startupCheck(cmd.Context(), out, deps)
		},
	}
}

func startupCheck(ctx context.Context, w io.Writer, deps preflight.StartupDeps) error {
	report := preflight.Startup(ctx, deps)
	report.Write(w)
	if report.Failed() {
		return errChecksFailed
	}
	return nil
}
