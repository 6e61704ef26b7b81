// Package tflite runs classifiers converted to TensorFlow Lite.
package tflite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/tphakala/go-tflite"
)

// Backend builds a model and interpreter per call and deletes both before returning.
type Backend struct {
	threads int
}

// NewBackend creates a TFLite backend.
func NewBackend(cfg config.TFLiteConfig) *Backend {
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	return &Backend{threads: threads}
}

func (b *Backend) Name() string      { return "tflite" }
func (b *Backend) Extension() string { return ".tflite" }

func (b *Backend) Check(_ context.Context, artifact models.ModelArtifact) error {
	return checkFile(artifact.Path)
}

func (b *Backend) Run(ctx context.Context, artifact models.ModelArtifact, input models.Tensor) ([]float32, error) {
	if err := checkFile(artifact.Path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPrediction, err)
	}

	model := tflite.NewModelFromFile(artifact.Path)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot load model from path: %s", models.ErrModelLoad, artifact.Path)
	}
	defer model.Delete()

	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	options.SetNumThread(b.threads)
	options.SetErrorReporter(func(msg string, _ any) {
		slog.Warn("tflite error", "model", artifact.Name, "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, fmt.Errorf("%w: cannot create interpreter", models.ErrModelLoad)
	}
	defer interpreter.Delete()

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, fmt.Errorf("%w: tensor allocation failed", models.ErrModelLoad)
	}

	in := interpreter.GetInputTensor(0)
	if in == nil {
		return nil, fmt.Errorf("%w: model has no input tensor", models.ErrPrediction)
	}
	dst := in.Float32s()
	if len(dst) != len(input.Data) {
		return nil, fmt.Errorf("%w: input size mismatch: model expects %d values, got %d",
			models.ErrPrediction, len(dst), len(input.Data))
	}
	copy(dst, input.Data)

	if status := interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("%w: invoke failed with status %v", models.ErrPrediction, status)
	}

	out := interpreter.GetOutputTensor(0)
	if out == nil {
		return nil, fmt.Errorf("%w: model has no output tensor", models.ErrPrediction)
	}
	probs := make([]float32, len(out.Float32s()))
	copy(probs, out.Float32s())
	return probs, nil
}

func checkFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: Model file %s does not exist", models.ErrModelNotFound, path)
		}
		return fmt.Errorf("%w: %v", models.ErrModelLoad, err)
	}
	return nil
}

// Compile-time check that Backend implements InferenceBackend.
var _ models.InferenceBackend = (*Backend)(nil)
