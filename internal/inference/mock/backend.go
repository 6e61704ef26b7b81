package mock

import (
	"context"
	"fmt"

	"github.com/mangosense/mangosense-api/pkg/models"
)

// Backend satisfies models.InferenceBackend for testing.
type Backend struct {
	Name_     string
	RunFunc   func(ctx context.Context, artifact models.ModelArtifact, input models.Tensor) ([]float32, error)
	CheckFunc func(ctx context.Context, artifact models.ModelArtifact) error

	Calls []models.ModelArtifact
}

func (b *Backend) Name() string      { return b.Name_ }
func (b *Backend) Extension() string { return ".mock" }

func (b *Backend) Run(ctx context.Context, artifact models.ModelArtifact, input models.Tensor) ([]float32, error) {
	b.Calls = append(b.Calls, artifact)
	if b.RunFunc != nil {
		return b.RunFunc(ctx, artifact, input)
	}
	return nil, nil
}

func (b *Backend) Check(ctx context.Context, artifact models.ModelArtifact) error {
	if b.CheckFunc != nil {
		return b.CheckFunc(ctx, artifact)
	}
	return nil
}

// NewBackend returns a Backend that always yields probs.
func NewBackend(probs ...float32) *Backend {
	return &Backend{
		Name_: "mock",
		RunFunc: func(_ context.Context, _ models.ModelArtifact, _ models.Tensor) ([]float32, error) {
			out := make([]float32, len(probs))
			copy(out, probs)
			return out, nil
		},
	}
}

// NewFailingBackend returns a Backend whose Run always returns err.
func NewFailingBackend(err error) *Backend {
	return &Backend{
		Name_: "mock-failing",
		RunFunc: func(_ context.Context, _ models.ModelArtifact, _ models.Tensor) ([]float32, error) {
			return nil, err
		},
	}
}

// NewMissingBackend returns a Backend that reports every artifact as absent.
func NewMissingBackend() *Backend {
	missing := func(a models.ModelArtifact) error {
		return fmt.Errorf("%w: Model file %s does not exist", models.ErrModelNotFound, a.Path)
	}
	return &Backend{
		Name_: "mock-missing",
		RunFunc: func(_ context.Context, a models.ModelArtifact, _ models.Tensor) ([]float32, error) {
			return nil, missing(a)
		},
		CheckFunc: func(_ context.Context, a models.ModelArtifact) error {
			return missing(a)
		},
	}
}

// Compile-time check that Backend implements InferenceBackend.
var _ models.InferenceBackend = (*Backend)(nil)
