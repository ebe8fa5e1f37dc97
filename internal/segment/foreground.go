package segment

import (
	"image"
	"math"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// BorderColor estimates the backdrop as the mean colour of the one-pixel
// image border.
func BorderColor(img image.Image) imaging.RGBColor {
	b := img.Bounds()
	if b.Empty() {
		return imaging.RGBColor{}
	}

	var sr, sg, sb, n float64
	add := func(x, y int) {
		c := imaging.RGBColorOf(img.At(x, y))
		sr += float64(c.R)
		sg += float64(c.G)
		sb += float64(c.B)
		n++
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		add(x, b.Min.Y)
		if b.Dy() > 1 {
			add(x, b.Max.Y-1)
		}
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		add(b.Min.X, y)
		if b.Dx() > 1 {
			add(b.Max.X-1, y)
		}
	}

	return imaging.RGBColor{
		R: uint8(math.Round(sr / n)),
		G: uint8(math.Round(sg / n)),
		B: uint8(math.Round(sb / n)),
	}
}

// Foreground marks every pixel whose RGB distance from bg exceeds tolerance.
func Foreground(img image.Image, bg imaging.RGBColor, tolerance float64) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	limit := tolerance * tolerance

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := imaging.RGBColorOf(img.At(b.Min.X+x, b.Min.Y+y))
			dr := float64(c.R) - float64(bg.R)
			dg := float64(c.G) - float64(bg.G)
			db := float64(c.B) - float64(bg.B)
			g.Set(x, y, dr*dr+dg*dg+db*db > limit)
		}
	}
	return g
}
