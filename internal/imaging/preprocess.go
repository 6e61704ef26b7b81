package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/pkg/models"
	"golang.org/x/image/draw"
)

// ErrPreprocess marks failures turning upload bytes into a tensor.
var ErrPreprocess = errors.New("image preprocessing failed")

// Preprocessed is the model input plus the dimensions of the original upload.
type Preprocessed struct {
	Tensor         models.Tensor
	OriginalWidth  int
	OriginalHeight int
	ProcessedSize  int
}

// Preprocess decodes raw image bytes, converts them to RGB, resizes to the
// family's square input size and applies the family's normalization.
func Preprocess(data []byte, spec catalog.FamilySpec) (*Preprocessed, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPreprocess, err)
	}
	if tooManyPixels(cfg) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrPreprocess, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPreprocess, err)
	}

	size := spec.InputSize
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid input size %d", ErrPreprocess, size)
	}
	if spec.Normalization.Scale == 0 {
		return nil, fmt.Errorf("%w: zero normalization scale", ErrPreprocess)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrPreprocess)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	return &Preprocessed{
		Tensor:         toTensor(dst, spec.Normalization),
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		ProcessedSize:  size,
	}, nil
}

// toTensor flattens an RGBA image to a single-image NHWC RGB batch, dropping alpha.
func toTensor(img *image.RGBA, norm catalog.Normalization) models.Tensor {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]float32, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			out = append(out,
				(float32(p[0])-norm.Mean)/norm.Scale,
				(float32(p[1])-norm.Mean)/norm.Scale,
				(float32(p[2])-norm.Mean)/norm.Scale,
			)
		}
	}
	return models.Tensor{Data: out, Shape: []int64{1, int64(h), int64(w), 3}}
}
