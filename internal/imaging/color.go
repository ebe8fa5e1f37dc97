package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gopkg.in/go-playground/colors.v1"
)

// RGBColor represents an RGB color with 8-bit components.
//
// It is the unit of every palette in the pipeline: custom palettes, palettes
// derived by quantization, device profile palettes and the medallion
// background all travel as RGBColor values.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// RGBColorOf converts any color to its 8-bit RGB triple, dropping alpha.
func RGBColorOf(c color.Color) RGBColor {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBColor{R: n.R, G: n.G, B: n.B}
}

// NRGBA returns the fully opaque color.
func (c RGBColor) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Slice returns the triple as [r, g, b], the form palettes take in JSON files.
func (c RGBColor) Slice() []int {
	return []int{int(c.R), int(c.G), int(c.B)}
}

// Hex formats the color as lowercase "#rrggbb".
func (c RGBColor) Hex() string {
	rgb, err := colors.RGB(c.R, c.G, c.B)
	if err != nil {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return rgb.ToHEX().String()
}

// String implements fmt.Stringer.
func (c RGBColor) String() string {
	return c.Hex()
}

// ParseHexColor parses "#rgb" or "#rrggbb" (the leading '#' is optional).
func ParseHexColor(s string) (RGBColor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RGBColor{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	hex, err := colors.ParseHEX(s)
	if err != nil {
		return RGBColor{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	rgb := hex.ToRGB()
	return RGBColor{R: rgb.R, G: rgb.G, B: rgb.B}, nil
}

// ParsePalette parses a comma separated list of hex colors such as
// "#8b0000,#f5f0e6,#1c2841". Empty entries are rejected.
func ParsePalette(s string) ([]RGBColor, error) {
	parts := strings.Split(s, ",")
	palette := make([]RGBColor, 0, len(parts))
	for i, p := range parts {
		c, err := ParseHexColor(p)
		if err != nil {
			return nil, fmt.Errorf("palette entry %d: %w", i+1, err)
		}
		palette = append(palette, c)
	}
	return palette, nil
}

// ColorFromTriple validates a JSON-style [r, g, b] triple.
func ColorFromTriple(v []int) (RGBColor, error) {
	if len(v) != 3 {
		return RGBColor{}, fmt.Errorf("color must have 3 components, got %d", len(v))
	}
	for i, c := range v {
		if c < 0 || c > 255 {
			return RGBColor{}, fmt.Errorf("color component %d out of range: %d", i, c)
		}
	}
	return RGBColor{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2])}, nil
}

// DistinctColors returns the set of colors used by img, ignoring alpha.
func DistinctColors(img image.Image) map[RGBColor]int {
	b := img.Bounds()
	seen := make(map[RGBColor]int)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			seen[RGBColorOf(img.At(x, y))]++
		}
	}
	return seen
}
