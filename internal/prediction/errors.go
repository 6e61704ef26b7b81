package prediction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mangosense/mangosense-api/pkg/models"
)

var (
	ErrInvalidImage = errors.New("invalid image file")
	ErrSave         = errors.New("failed to save prediction")
)

// Failure is a predict error carrying the client-facing message and detail lines.
type Failure struct {
	Message string
	Details []string
	Err     error
}

func (f *Failure) Error() string {
	if len(f.Details) == 0 {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Message, strings.Join(f.Details, "; "))
}

func (f *Failure) Unwrap() error { return f.Err }

// inferenceFailure maps a backend error to the message the app shows.
func inferenceFailure(err error, family, path string) *Failure {
	switch {
	case errors.Is(err, models.ErrModelNotFound):
		return &Failure{
			Message: "Model file not found: " + family,
			Details: []string{fmt.Sprintf("Model file %s does not exist", path)},
			Err:     err,
		}
	case errors.Is(err, models.ErrModelLoad):
		return &Failure{
			Message: "Failed to load ML model",
			Details: []string{detail(err, models.ErrModelLoad)},
			Err:     err,
		}
	default:
		return &Failure{
			Message: "ML prediction failed",
			Details: []string{detail(err, models.ErrPrediction)},
			Err:     err,
		}
	}
}

// detail strips the sentinel prefix so the client sees the underlying cause.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}
