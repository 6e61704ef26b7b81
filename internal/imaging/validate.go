// Package imaging validates uploaded images and turns them into model input tensors.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// DefaultMaxBytes is the upload size ceiling.
	DefaultMaxBytes int64 = 5 * 1024 * 1024

	// MaxPixels caps width*height so a small, highly compressed file cannot
	// expand into a huge decode buffer.
	MaxPixels = 40_000_000
)

var allowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
}

// Validate checks an upload against the size ceiling and the allowed formats.
// It returns human-readable reasons; an empty slice means the upload is acceptable.
// The format is taken from the decoded header, not the filename or content type.
func Validate(data []byte, size int64, maxBytes int64) []string {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var errs []string
	if size == 0 || len(data) == 0 {
		return []string{"Image file is empty"}
	}
	if size > maxBytes {
		errs = append(errs, SizeLimitMessage(maxBytes))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || !allowedFormats[format] {
		return append(errs, "Only JPEG and PNG images are allowed")
	}
	if tooManyPixels(cfg) {
		errs = append(errs, fmt.Sprintf("Image dimensions cannot exceed %d megapixels", MaxPixels/1_000_000))
	}

	return errs
}

// SizeLimitMessage is the validation message for an upload over maxBytes.
func SizeLimitMessage(maxBytes int64) string {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return fmt.Sprintf("Image size cannot exceed %dMB", maxBytes/(1024*1024))
}

func tooManyPixels(cfg image.Config) bool {
	return cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels
}
