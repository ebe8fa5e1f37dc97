package engine

import (
	"context"
	"image"
	"strings"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// Edge detection methods.
const (
	EdgeMethodCanny   = "canny"
	EdgeMethodHED     = "hed"
	EdgeMethodPiDiNet = "pidinet"
)

// CannyDetector is the built-in EdgeDetector.
type CannyDetector struct {
	Low, High int
}

// NewEdgeDetector builds the detector for method. Learned annotators (HED,
// PiDiNet) need model weights this module does not ship, so they report a
// MissingDependencyError.
func NewEdgeDetector(method string) (EdgeDetector, error) {
	switch m := strings.ToLower(strings.TrimSpace(method)); m {
	case "", EdgeMethodCanny:
		return &CannyDetector{Low: imaging.DefaultEdgeLow, High: imaging.DefaultEdgeHigh}, nil
	case EdgeMethodHED, EdgeMethodPiDiNet:
		return nil, &MissingDependencyError{
			Dependency: m + " annotator",
			Reason:     "learned edge models are not bundled; use method canny",
		}
	default:
		return nil, &MissingDependencyError{Dependency: "edge method " + method, Reason: "unknown method"}
	}
}

// DetectEdges implements EdgeDetector.
func (d *CannyDetector) DetectEdges(ctx context.Context, img image.Image) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return imaging.Canny(img, d.Low, d.High), nil
}

// Refine implements EdgeDetector.
func (d *CannyDetector) Refine(edges *image.Gray) *image.Gray {
	return imaging.RefineEdges(edges)
}

var _ EdgeDetector = (*CannyDetector)(nil)
