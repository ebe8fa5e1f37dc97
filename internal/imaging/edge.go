package imaging

import (
	"image"
	"image/color"
	"math"
)

// Default Canny thresholds used by the pipeline's edge stage.
const (
	DefaultEdgeLow  = 50
	DefaultEdgeHigh = 150
)

// plane is a row-major float grid the size of the image being analysed.
type plane struct {
	w, h int
	v    []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, v: make([]float64, w*h)}
}

// at reads with clamped (replicated) borders.
func (p *plane) at(x, y int) float64 {
	return p.v[clamp(y, 0, p.h-1)*p.w+clamp(x, 0, p.w-1)]
}

func (p *plane) set(x, y int, val float64) {
	p.v[y*p.w+x] = val
}

// Canny produces a binary edge map of img.
//
// White pixels (255) mark edges and black pixels (0) everything else. The
// returned image always starts at (0,0) and has the same size as img.
//
// # Algorithm
//
//  1. Luminance with ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B), 0-1
//  2. 5x5 Gaussian blur (sigma ≈ 1.4)
//  3. Sobel gradients, magnitude = sqrt(Gx² + Gy²), direction = atan2(Gy, Gx)
//  4. Non-maximum suppression along the gradient direction
//  5. Hysteresis: magnitudes at or above high/255 are kept; magnitudes between
//     low/255 and high/255 are kept only next to a strong pixel
//
// Lower thresholds keep fainter motif outlines at the cost of more speckle,
// which the morphological refine removes afterwards.
func Canny(img image.Image, thresholdLow, thresholdHigh int) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return out
	}

	lum := newPlane(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			lum.set(x, y, 0.299*float64(r>>8)/255+0.587*float64(g>>8)/255+0.114*float64(b>>8)/255)
		}
	}

	blurred := gaussianBlur(lum)
	magnitude, direction := sobel(blurred)
	thin := suppressNonMaxima(magnitude, direction)

	low := float64(thresholdLow) / 255
	high := float64(thresholdHigh) / 255
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := thin.at(x, y)
			if v >= high || (v >= low && hasStrongNeighbour(thin, x, y, high)) {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// EdgeDetectResult is an edge map encoded for transport as base64 PNG.
type EdgeDetectResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EdgeDetect runs Canny and, when refine is set, RefineEdges on img and
// encodes the result as PNG.
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int, refine bool) (*EdgeDetectResult, error) {
	edges := Canny(img, thresholdLow, thresholdHigh)
	if refine {
		edges = RefineEdges(edges)
	}

	encoded, err := EncodePNGBase64(edges)
	if err != nil {
		return nil, err
	}
	return &EdgeDetectResult{
		Width:       edges.Bounds().Dx(),
		Height:      edges.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

func sobel(src *plane) (magnitude, direction *plane) {
	kx := [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	ky := [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}

	magnitude = newPlane(src.w, src.h)
	direction = newPlane(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			var gx, gy float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					v := src.at(x+dx, y+dy)
					gx += v * kx[dy+1][dx+1]
					gy += v * ky[dy+1][dx+1]
				}
			}
			magnitude.set(x, y, math.Sqrt(gx*gx+gy*gy))
			direction.set(x, y, math.Atan2(gy, gx))
		}
	}
	return magnitude, direction
}

// suppressNonMaxima keeps a magnitude only where it is a local maximum across
// the edge. The one-pixel image border is always suppressed.
func suppressNonMaxima(magnitude, direction *plane) *plane {
	out := newPlane(magnitude.w, magnitude.h)
	for y := 1; y < magnitude.h-1; y++ {
		for x := 1; x < magnitude.w-1; x++ {
			angle := direction.at(x, y)
			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude.at(x-1, y), magnitude.at(x+1, y)
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude.at(x+1, y-1), magnitude.at(x-1, y+1)
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude.at(x, y-1), magnitude.at(x, y+1)
			default:
				n1, n2 = magnitude.at(x-1, y-1), magnitude.at(x+1, y+1)
			}
			if m := magnitude.at(x, y); m >= n1 && m >= n2 {
				out.set(x, y, m)
			}
		}
	}
	return out
}

func hasStrongNeighbour(p *plane, x, y int, high float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if p.at(x+dx, y+dy) >= high {
				return true
			}
		}
	}
	return false
}

// gaussianBlur applies a 5x5 Gaussian blur with the classic integer kernel:
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
//
// normalised by its sum, 273.
func gaussianBlur(src *plane) *plane {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}

	out := newPlane(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sum += src.at(x+kx, y+ky) * kernel[ky+2][kx+2]
				}
			}
			out.set(x, y, sum/273)
		}
	}
	return out
}

// clamp constrains val to [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
