// Package inference selects and drives the classifier runtime.
package inference

import (
	"fmt"

	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/internal/inference/onnx"
	"github.com/mangosense/mangosense-api/internal/inference/tflite"
	"github.com/mangosense/mangosense-api/internal/inference/tfserving"
	"github.com/mangosense/mangosense-api/pkg/models"
)

// NewBackend constructs the classifier runtime named in config.
// Called once at server startup.
func NewBackend(cfg config.InferenceConfig) (models.InferenceBackend, error) {
	switch cfg.Backend {
	case "onnx":
		return onnx.NewBackend(cfg.ONNX), nil
	case "tflite":
		return tflite.NewBackend(cfg.TFLite), nil
	case "tfserving":
		return tfserving.NewClient(cfg.TFServing.BaseURL, cfg.TFServing.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q: must be one of onnx, tflite, tfserving", cfg.Backend)
	}
}
