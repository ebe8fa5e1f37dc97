package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default swatch size used for 05_palette.png.
const (
	SwatchWidth  = 600
	SwatchHeight = 80
)

// emptyPaletteLabel is drawn on the swatch when there is nothing to show.
const emptyPaletteLabel = "No colour palette to display."

// PaletteSwatch renders palette as equal-width vertical bands in order.
//
// Each band is width/len(palette) pixels wide; the last band absorbs the
// remainder so the strip is always exactly width pixels. An empty palette
// yields a white strip carrying a short black notice.
func PaletteSwatch(palette []RGBColor, width, height int) *image.NRGBA {
	if len(palette) == 0 {
		img := imaging.New(width, height, color.White)
		drawText(img, 10, 10, emptyPaletteLabel, color.Black)
		return img
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	band := width / len(palette)
	for i, c := range palette {
		x0 := i * band
		x1 := x0 + band
		if i == len(palette)-1 {
			x1 = width
		}
		fill := c.NRGBA()
		for y := 0; y < height; y++ {
			for x := x0; x < x1; x++ {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	return img
}

// drawText writes s with the 7x13 basic font, the glyph box's top-left at
// (x, y).
func drawText(dst *image.NRGBA, x, y int, s string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(s)
}
