package inference

import "github.com/mangosense/mangosense-api/pkg/models"

// Sentinel errors for classifier failures. Backends wrap these; callers match with errors.Is.
var (
	ErrModelNotFound = models.ErrModelNotFound
	ErrModelLoad     = models.ErrModelLoad
	ErrPrediction    = models.ErrPrediction
)
