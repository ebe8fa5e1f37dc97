// Package geometry converts physical carpet dimensions and weave density into
// the knot grid a loom works from, and derives production statistics.
//
// All functions are pure. A CarpetSpec is the only input; nothing is cached.
//
// # Terminology
//
//   - Shaneh: weft (reed) density, knots per 10 cm of width
//   - Tar: warp density, knots per 10 cm of height
//   - Density (raj): (shaneh/10) * tar knots per square decimeter
//
// One knot maps to one pixel, so the knot resolution is also the pixel
// resolution every later pipeline stage works at.
package geometry

import (
	"fmt"
	"math"
)

// CarpetSpec describes the physical carpet to be woven.
//
// All four fields must be positive. Use Validate before deriving anything
// from a spec that came from user input.
type CarpetSpec struct {
	WidthCM  int `json:"width_cm"`  // Carpet width in centimeters
	HeightCM int `json:"height_cm"` // Carpet height (length) in centimeters
	Shaneh   int `json:"shaneh"`    // Knots per 10 cm of width
	Tar      int `json:"tar"`       // Knots per 10 cm of height
}

// DefaultSpec is the 200x300 cm, 50 shaneh, 12 tar carpet used when the caller
// supplies no dimensions.
var DefaultSpec = CarpetSpec{WidthCM: 200, HeightCM: 300, Shaneh: 50, Tar: 12}

// Validate reports an error if any dimension or density is not positive.
func (s CarpetSpec) Validate() error {
	switch {
	case s.WidthCM <= 0:
		return fmt.Errorf("width_cm must be positive, got %d", s.WidthCM)
	case s.HeightCM <= 0:
		return fmt.Errorf("height_cm must be positive, got %d", s.HeightCM)
	case s.Shaneh <= 0:
		return fmt.Errorf("shaneh must be positive, got %d", s.Shaneh)
	case s.Tar <= 0:
		return fmt.Errorf("tar must be positive, got %d", s.Tar)
	}
	return nil
}

// Resolution is a knot grid size; one knot is one pixel.
type Resolution struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

// String formats the resolution as "WxH".
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Floor8 rounds both dimensions down to the nearest multiple of 8.
//
// Diffusion models only accept sizes divisible by 8. A dimension smaller
// than 8 becomes 0; callers must treat that as "too small to generate".
func (r Resolution) Floor8() Resolution {
	return Resolution{Width: r.Width / 8 * 8, Height: r.Height / 8 * 8}
}

// KnotResolution converts the carpet spec into its knot grid.
//
//	width_px  = round(width_cm / 10 * shaneh)
//	height_px = round(height_cm / 10 * tar)
//
// Rounding is half away from zero.
func KnotResolution(s CarpetSpec) Resolution {
	return Resolution{
		Width:  int(math.Round(float64(s.WidthCM) / 10 * float64(s.Shaneh))),
		Height: int(math.Round(float64(s.HeightCM) / 10 * float64(s.Tar))),
	}
}

// DensityPerDM2 returns the knot density (raj) per square decimeter:
// (shaneh / 10) * tar.
func DensityPerDM2(s CarpetSpec) float64 {
	return (float64(s.Shaneh) / 10) * float64(s.Tar)
}
