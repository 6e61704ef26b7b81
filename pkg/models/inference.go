package models

import (
	"context"
	"errors"
)

// Sentinel errors every inference backend reports through.
var (
	ErrModelNotFound = errors.New("model artifact not found")
	ErrModelLoad     = errors.New("model load failed")
	ErrPrediction    = errors.New("model prediction failed")
)

// Tensor is a dense float32 batch with its shape.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// ModelArtifact identifies the classifier for one family.
type ModelArtifact struct {
	Family string
	Name   string // serving name, e.g. leaf-mobilenetv2
	Path   string // filesystem path for local backends
}

// InferenceBackend is the interface every classifier runtime implements.
// Never call a specific runtime directly; always inject this interface.
type InferenceBackend interface {
	// Run performs one forward pass and returns the raw output vector.
	Run(ctx context.Context, artifact ModelArtifact, input Tensor) ([]float32, error)
	// Check reports whether the artifact is present; ErrModelNotFound when it is not.
	Check(ctx context.Context, artifact ModelArtifact) error
	// Name returns the backend identifier (e.g. "onnx", "tflite").
	Name() string
	// Extension is the artifact file suffix for local backends, empty otherwise.
	Extension() string
}
