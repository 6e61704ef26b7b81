package inference

import (
	"context"
	"fmt"

	"github.com/mangosense/mangosense-api/pkg/models"
)

// Predict runs one forward pass and checks the output against the family's label list.
func Predict(ctx context.Context, backend models.InferenceBackend, artifact models.ModelArtifact, input models.Tensor, labels []string) ([]float32, error) {
	out, err := backend.Run(ctx, artifact, input)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: model returned empty prediction array", ErrPrediction)
	}
	if len(out) != len(labels) {
		return nil, fmt.Errorf("%w: prediction length (%d) doesn't match class names length (%d)",
			ErrPrediction, len(out), len(labels))
	}
	return out, nil
}
