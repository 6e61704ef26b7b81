// Package onnx runs classifiers exported to ONNX through onnxruntime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/pkg/models"
	ort "github.com/yalue/onnxruntime_go"
)

// The onnxruntime environment is process-wide and may only be initialised once.
var (
	envOnce sync.Once
	envErr  error
)

// Backend loads the artifact into a fresh session on every call and destroys it before returning.
type Backend struct {
	libPath string
}

// NewBackend creates an ONNX backend. The shared library is loaded lazily on first Run.
func NewBackend(cfg config.ONNXConfig) *Backend {
	return &Backend{libPath: cfg.SharedLibraryPath}
}

func (b *Backend) Name() string      { return "onnx" }
func (b *Backend) Extension() string { return ".onnx" }

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
	if err := b.initEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: initializing onnxruntime: %v", models.ErrModelLoad, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading model io: %v", models.ErrModelLoad, err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("%w: unexpected io (in:%d out:%d)", models.ErrModelLoad, len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSession(artifact.Path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating session: %v", models.ErrModelLoad, err)
	}
	defer destroy("session", session)

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: input tensor: %v", models.ErrPrediction, err)
	}
	defer destroy("input tensor", in)

	out, err := ort.NewEmptyTensor[float32](outputShape(outputs[0].Dimensions))
	if err != nil {
		return nil, fmt.Errorf("%w: output tensor: %v", models.ErrPrediction, err)
	}
	defer destroy("output tensor", out)

	if err := session.Run([]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out}); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPrediction, err)
	}

	return copyScores(out.GetData()), nil
}

// outputShape fixes dynamic dimensions (reported as -1 or 0) to 1, since a
// request always carries a single image.
func outputShape(dims ort.Shape) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

// copyScores detaches the scores from tensor memory that is freed on return.
func copyScores(data []float32) []float32 {
	probs := make([]float32, len(data))
	copy(probs, data)
	return probs
}

func (b *Backend) initEnvironment() error {
	envOnce.Do(func() {
		if b.libPath != "" {
			ort.SetSharedLibraryPath(b.libPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

type destroyer interface {
	Destroy() error
}

func destroy(what string, d destroyer) {
	if err := d.Destroy(); err != nil {
		slog.Warn("onnx: destroy failed", "resource", what, "error", err)
	}
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
