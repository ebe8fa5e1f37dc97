package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// KnotChartResult contains a knot chart encoded as base64 PNG.
type KnotChartResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Spacing     int    `json:"spacing"`
	Scale       int    `json:"scale"`
}

// MaxKnotChartPixels bounds the chart canvas, about 160 MB as NRGBA.
const MaxKnotChartPixels = 40_000_000

// FitKnotChartScale returns the largest scale up to want whose chart for a
// design of knots fits MaxKnotChartPixels, or 0 when not even scale 2 fits.
func FitKnotChartScale(knots image.Point, want int) int {
	for s := want; s >= 2; s-- {
		if chartPixels(knots, s) <= MaxKnotChartPixels {
			return s
		}
	}
	return 0
}

func chartPixels(knots image.Point, scale int) int64 {
	return int64(knots.X) * int64(scale) * int64(knots.Y) * int64(scale)
}

// KnotChart draws the weaver's grid over a knot-resolution design.
//
// Every knot is enlarged to a scale x scale block (nearest neighbour, so
// colors stay exact) and a thin grid line is drawn every spacing knots.
// Every tenth grid line is drawn twice as thick and labelled with its knot
// index, so weavers can count along the loom.
func KnotChart(design image.Image, spacing, scale int, lineColor RGBColor) (*image.NRGBA, error) {
	if spacing <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got %d", spacing)
	}
	if scale < 2 {
		return nil, fmt.Errorf("scale must be at least 2, got %d", scale)
	}

	b := design.Bounds()
	knotsX, knotsY := b.Dx(), b.Dy()
	if chartPixels(b.Size(), scale) > MaxKnotChartPixels {
		return nil, fmt.Errorf("knot chart of %dx%d knots at scale %d exceeds %d pixels", knotsX, knotsY, scale, MaxKnotChartPixels)
	}
	chart := imaging.Resize(design, knotsX*scale, knotsY*scale, imaging.NearestNeighbor)
	width, height := chart.Bounds().Dx(), chart.Bounds().Dy()
	line := lineColor.NRGBA()

	for k := spacing; k < knotsX; k += spacing {
		thick := 1
		if k%(spacing*10) == 0 {
			thick = 2
		}
		draw.Draw(chart, image.Rect(k*scale, 0, k*scale+thick, height), image.NewUniform(line), image.Point{}, draw.Src)
		if thick == 2 {
			drawLabel(chart, k*scale+3, 2, fmt.Sprintf("%d", k))
		}
	}

	for k := spacing; k < knotsY; k += spacing {
		thick := 1
		if k%(spacing*10) == 0 {
			thick = 2
		}
		draw.Draw(chart, image.Rect(0, k*scale, width, k*scale+thick), image.NewUniform(line), image.Point{}, draw.Src)
		if thick == 2 {
			drawLabel(chart, 2, k*scale+3, fmt.Sprintf("%d", k))
		}
	}

	return chart, nil
}

// EncodeKnotChart draws a knot chart and encodes it for transport.
func EncodeKnotChart(design image.Image, spacing, scale int, lineColor RGBColor) (*KnotChartResult, error) {
	chart, err := KnotChart(design, spacing, scale, lineColor)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodePNGBase64(chart)
	if err != nil {
		return nil, err
	}
	return &KnotChartResult{
		Width:       chart.Bounds().Dx(),
		Height:      chart.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
		Spacing:     spacing,
		Scale:       scale,
	}, nil
}

// drawLabel draws white text on a translucent black box, clipped to img.
func drawLabel(img *image.NRGBA, x, y int, text string) {
	const charWidth, labelHeight = 7, 13
	box := image.Rect(x-1, y-1, x+len(text)*charWidth+1, y+labelHeight).Intersect(img.Bounds())
	if box.Empty() {
		return
	}
	draw.Draw(img, box, image.NewUniform(color.NRGBA{A: 180}), image.Point{}, draw.Over)
	drawText(img, x, y, text, color.White)
}
