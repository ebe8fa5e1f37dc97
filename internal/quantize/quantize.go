// Package quantize reduces designs to a small set of yarn colours.
//
// Two entry points produce a dithered image plus the palette used:
//
//   - Auto derives a palette of exactly n colours with median cut.
//   - Apply uses a caller-supplied palette, such as one stored in a device
//     profile.
//
// Both diffuse quantization error Floyd-Steinberg style instead of mapping
// each pixel to its nearest colour in isolation, so gradients in the design
// survive as mixtures of neighbouring knots.
//
// Extract is separate: it clusters a pixel sample with seeded k-means to
// suggest a palette from any photograph.
package quantize

import (
	"fmt"
	"image"
)

// Limits for palettes chosen interactively.
const (
	MinColors = 2
	MaxColors = 20
)

// Quantizer holds the options shared by Auto and Apply.
type Quantizer struct {
	Metric Metric
}

// New returns a Quantizer using metric for nearest-colour decisions.
func New(metric Metric) *Quantizer {
	if metric == "" {
		metric = MetricRGB
	}
	return &Quantizer{Metric: metric}
}

// Auto reduces img to exactly n colours.
//
// The palette has n entries even when img has fewer distinct colours; the
// quantized image uses only colours from it.
func (q *Quantizer) Auto(img image.Image, n int) (*image.NRGBA, Palette, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("n_colors must be positive, got %d", n)
	}
	if img.Bounds().Empty() {
		return nil, nil, fmt.Errorf("cannot quantize an empty image")
	}

	p := MedianCut(img, n)
	out, err := Dither(img, p, q.Metric)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dither image: %w", err)
	}
	return out, p, nil
}

// Apply maps img onto palette with error diffusion. The returned palette is
// the one supplied, unchanged.
func (q *Quantizer) Apply(img image.Image, palette Palette) (*image.NRGBA, Palette, error) {
	if len(palette) == 0 {
		return nil, nil, fmt.Errorf("custom palette is empty")
	}

	out, err := Dither(img, palette, q.Metric)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply palette: %w", err)
	}
	return out, palette, nil
}

// ValidateColorCount checks n against the interactive limits.
func ValidateColorCount(n int) error {
	if n < MinColors || n > MaxColors {
		return fmt.Errorf("n_colors must be between %d and %d, got %d", MinColors, MaxColors, n)
	}
	return nil
}
