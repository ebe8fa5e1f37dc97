package engine

import (
	"context"
	"image"

	"github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/segment"
)

// Flood segmenter defaults.
const (
	DefaultTolerance = 40.0
	DefaultMinArea   = 100
)

// FloodSegmenter separates a motif photographed on a plain backdrop.
//
// The backdrop colour is the mean of the border pixels; everything farther
// than Tolerance from it (RGB distance) is foreground. In fast mode the
// 8-connected region under the image centre is kept, the way a single
// centre-point prompt would select it; otherwise the largest region wins if
// it covers at least MinArea pixels. Holes inside the chosen region are
// filled.
type FloodSegmenter struct {
	Tolerance float64
	MinArea   int
}

// NewFloodSegmenter applies defaults to non-positive settings.
func NewFloodSegmenter(tolerance float64, minArea int) *FloodSegmenter {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if minArea <= 0 {
		minArea = DefaultMinArea
	}
	return &FloodSegmenter{Tolerance: tolerance, MinArea: minArea}
}

// ExtractMainObject implements Segmenter.
func (s *FloodSegmenter) ExtractMainObject(ctx context.Context, img image.Image, fastMode bool) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}

	fg := segment.Foreground(img, segment.BorderColor(img), s.Tolerance)
	comps := segment.Components(fg)

	var (
		chosen segment.Component
		ok     bool
	)
	if fastMode {
		chosen, ok = segment.Containing(comps, image.Pt(b.Dx()/2, b.Dy()/2))
	} else {
		chosen, ok = segment.Largest(comps, s.MinArea)
	}
	if !ok {
		return nil, nil
	}

	return segment.FillHoles(chosen.Grid(b.Dx(), b.Dy())).Mask(), nil
}

// ApplyMask keeps img where mask is non-zero and paints bg elsewhere.
// mask is read from its own origin and must be the size of img.
func ApplyMask(img image.Image, mask *image.Gray, bg imaging.RGBColor) *image.NRGBA {
	out := imaging.Clone(img)
	mb := mask.Bounds()
	fill := bg.NRGBA()

	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			if mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y == 0 {
				out.SetNRGBA(x, y, fill)
				continue
			}
			i := out.PixOffset(x, y)
			out.Pix[i+3] = 255
		}
	}
	return out
}

var _ Segmenter = (*FloodSegmenter)(nil)
