package quantize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// Palette is an ordered list of yarn colours. Duplicates are allowed.
type Palette []imaging.RGBColor

// ColorInfoName is the palette record written next to the quantized image.
const ColorInfoName = "color_info.json"

// ColorEntry is one 1-indexed palette entry of color_info.json.
type ColorEntry struct {
	Index int    `json:"index"`
	RGB   []int  `json:"rgb"`
	Hex   string `json:"hex"`
}

// ColorInfo is the document stored in color_info.json.
type ColorInfo struct {
	Palette     []ColorEntry `json:"palette"`
	TotalColors int          `json:"total_colors"`
}

// Info builds the color_info.json document for p.
func (p Palette) Info() ColorInfo {
	info := ColorInfo{Palette: make([]ColorEntry, len(p)), TotalColors: len(p)}
	for i, c := range p {
		info.Palette[i] = ColorEntry{Index: i + 1, RGB: c.Slice(), Hex: c.Hex()}
	}
	return info
}

// Hex returns the palette as hex strings, in order.
func (p Palette) Hex() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Hex()
	}
	return out
}

// WriteColorInfo writes p to dir/color_info.json and returns the path.
func WriteColorInfo(dir string, p Palette) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(p.Info()); err != nil {
		return "", fmt.Errorf("failed to encode palette: %w", err)
	}

	path := filepath.Join(dir, ColorInfoName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", ColorInfoName, err)
	}
	return path, nil
}

// ReadColorInfo loads a palette previously written by WriteColorInfo.
// Entries are taken in file order; the index field is informational.
func ReadColorInfo(path string) (Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette file: %w", err)
	}

	var info ColorInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse palette file: %w", err)
	}

	p := make(Palette, 0, len(info.Palette))
	for _, e := range info.Palette {
		c, err := imaging.ColorFromTriple(e.RGB)
		if err != nil {
			return nil, fmt.Errorf("palette entry %d: %w", e.Index, err)
		}
		p = append(p, c)
	}
	return p, nil
}
