// Package symmetry composes classical carpet layouts from a design.
//
// FourWayMirror builds the quartered symmetry typical of a central medallion,
// Medallion places such an element centred on a plain field, and
// MirrorHorizontal produces the simpler left/right book-matched layout.
// All functions return new opaque images and never modify their input.
package symmetry

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	carpetimg "github.com/ironsheep/carpet-design/internal/imaging"
)

// DefaultBackground is the ivory field colour used around a medallion.
var DefaultBackground = carpetimg.RGBColor{R: 245, G: 240, B: 230}

// FourWayMirror rebuilds img from its top-left quadrant.
//
// With qw = w/2 and qh = h/2 (floored), the quadrant (0,0)-(qw,qh) is kept,
// flipped horizontally into the top-right, vertically into the bottom-left,
// and both ways into the bottom-right. The output has the size of img. On odd
// dimensions the last column or row is not covered by any quadrant and stays
// black; downstream stages rely on the exact output size, so the seam is kept.
func FourWayMirror(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	qw, qh := w/2, h/2

	out := imaging.New(w, h, color.Black)
	if qw == 0 || qh == 0 {
		return out
	}

	topLeft := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+qw, b.Min.Y+qh))
	topRight := imaging.FlipH(topLeft)
	bottomLeft := imaging.FlipV(topLeft)
	bottomRight := imaging.FlipH(bottomLeft)

	out = imaging.Paste(out, topLeft, image.Pt(0, 0))
	out = imaging.Paste(out, topRight, image.Pt(qw, 0))
	out = imaging.Paste(out, bottomLeft, image.Pt(0, qh))
	out = imaging.Paste(out, bottomRight, image.Pt(qw, qh))
	return opaque(out)
}

// MirrorHorizontal keeps the left half of img and mirrors it into the right
// half. An odd width leaves the last column black.
func MirrorHorizontal(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	hw := w / 2

	out := imaging.New(w, h, color.Black)
	if hw == 0 || h == 0 {
		return out
	}

	left := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+hw, b.Max.Y))
	out = imaging.Paste(out, left, image.Pt(0, 0))
	out = imaging.Paste(out, imaging.FlipH(left), image.Pt(hw, 0))
	return opaque(out)
}

// Medallion composes center onto a plain canvas.
//
// The canvas is width x height filled with background. center is resized to
// a square of side min(width, height)/2 with a Lanczos filter and placed at
// ((width-side)/2, (height-side)/2). When center has transparency its alpha
// acts as the paste mask, so transparent pixels show the background.
func Medallion(center image.Image, width, height int, background carpetimg.RGBColor) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %dx%d", width, height)
	}

	canvas := imaging.New(width, height, background.NRGBA())
	side := min(width, height) / 2
	if side == 0 || center.Bounds().Empty() {
		return canvas, nil
	}

	medallion := imaging.Resize(center, side, side, imaging.Lanczos)
	pos := image.Pt((width-side)/2, (height-side)/2)

	if carpetimg.HasAlpha(center) {
		return imaging.Overlay(canvas, medallion, pos, 1.0), nil
	}
	return opaque(imaging.Paste(canvas, medallion, pos)), nil
}

// opaque forces every alpha value to 255 in place.
func opaque(img *image.NRGBA) *image.NRGBA {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}
