package quantize

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// Metric selects how "nearest palette colour" is measured.
type Metric string

const (
	// MetricRGB is squared Euclidean distance in 8-bit RGB.
	MetricRGB Metric = "rgb"
	// MetricLab is Euclidean distance in CIE L*a*b*, closer to how a
	// weaver judges two yarns.
	MetricLab Metric = "lab"
)

// ParseMetric accepts "rgb" or "lab" in any case; empty means rgb.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "", MetricRGB:
		return MetricRGB, nil
	case MetricLab:
		return MetricLab, nil
	default:
		return "", fmt.Errorf("unknown color metric %q (want rgb or lab)", s)
	}
}

// matcher finds the nearest palette index for an RGB triple in 0-255 floats.
type matcher struct {
	palette Palette
	lab     [][3]float64
	metric  Metric
}

func newMatcher(p Palette, metric Metric) *matcher {
	m := &matcher{palette: p, metric: metric}
	if metric == MetricLab {
		m.lab = make([][3]float64, len(p))
		for i, c := range p {
			l, a, b := toColorful(float64(c.R), float64(c.G), float64(c.B)).Lab()
			m.lab[i] = [3]float64{l, a, b}
		}
	}
	return m
}

// nearest returns the first palette index at minimum distance.
func (m *matcher) nearest(r, g, b float64) int {
	best, bestDist := 0, math.Inf(1)

	if m.metric == MetricLab {
		l, a, bb := toColorful(r, g, b).Lab()
		for i, p := range m.lab {
			d := (l-p[0])*(l-p[0]) + (a-p[1])*(a-p[1]) + (bb-p[2])*(bb-p[2])
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		return best
	}

	for i, c := range m.palette {
		dr, dg, db := r-float64(c.R), g-float64(c.G), b-float64(c.B)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func toColorful(r, g, b float64) colorful.Color {
	return colorful.Color{R: r / 255, G: g / 255, B: b / 255}
}

// Dither maps every pixel of img to a palette colour with Floyd-Steinberg
// error diffusion.
//
// Pixels are visited left to right, top to bottom. The quantization error
// of each pixel is pushed to its unvisited neighbours with weights 7/16
// (right), 3/16 (below left), 5/16 (below) and 1/16 (below right), so the
// local average colour tracks the original even with few yarns.
//
// The result is opaque, starts at (0,0), and contains only palette colours.
func Dither(img image.Image, p Palette, metric Metric) (*image.NRGBA, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("palette is empty")
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out, nil
	}

	// two rows of accumulated error, 3 channels each
	cur := make([]float64, w*3)
	next := make([]float64, w*3)
	m := newMatcher(p, metric)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := imaging.RGBColorOf(img.At(b.Min.X+x, b.Min.Y+y))
			r := clamp255(float64(src.R) + cur[x*3])
			g := clamp255(float64(src.G) + cur[x*3+1])
			bl := clamp255(float64(src.B) + cur[x*3+2])

			c := p[m.nearest(r, g, bl)]
			out.SetNRGBA(x, y, c.NRGBA())

			er, eg, eb := r-float64(c.R), g-float64(c.G), bl-float64(c.B)
			spread := func(row []float64, xx int, weight float64) {
				if xx < 0 || xx >= w {
					return
				}
				row[xx*3] += er * weight
				row[xx*3+1] += eg * weight
				row[xx*3+2] += eb * weight
			}
			spread(cur, x+1, 7.0/16)
			spread(next, x-1, 3.0/16)
			spread(next, x, 5.0/16)
			spread(next, x+1, 1.0/16)
		}
		cur, next = next, cur
		for i := range next {
			next[i] = 0
		}
	}
	return out, nil
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
