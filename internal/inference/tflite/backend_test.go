package tflite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/pkg/models"
)

func TestNewBackend_ClampsThreads(t *testing.T) {
	if b := NewBackend(config.TFLiteConfig{Threads: 0}); b.threads != 1 {
		t.Fatalf("threads = %d, want 1", b.threads)
	}
	if b := NewBackend(config.TFLiteConfig{Threads: 6}); b.threads != 6 {
		t.Fatalf("threads = %d, want 6", b.threads)
	}
}

func TestRun_MissingArtifact(t *testing.T) {
	b := NewBackend(config.TFLiteConfig{Threads: 1})
	path := filepath.Join(t.TempDir(), "fruit-mobilenetv2.tflite")

	_, err := b.Run(context.Background(), models.ModelArtifact{Path: path}, models.Tensor{})
	if !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if want := "Model file " + path + " does not exist"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not mention %q", err, want)
	}
}
