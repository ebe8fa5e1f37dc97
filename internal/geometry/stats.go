package geometry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Dimensions is the physical size section of a Stats record.
type Dimensions struct {
	WidthCM  int     `json:"width_cm"`
	HeightCM int     `json:"height_cm"`
	WidthM   float64 `json:"width_m"`
	HeightM  float64 `json:"height_m"`
}

// Weaving is the weave density section of a Stats record.
type Weaving struct {
	ShanehPer10CM int `json:"shaneh_per_10cm"`
	TarPer10CM    int `json:"tar_per_10cm"`
	DensityPerDM2 int `json:"density_per_dm2"`
	DensityPerM2  int `json:"density_per_m2"`
	Raj           int `json:"raj"`
}

// ProductionEstimate is the production section of a Stats record.
type ProductionEstimate struct {
	AreaM2     float64 `json:"area_m2"`
	TotalKnots int64   `json:"total_knots"`
}

// Stats contains the production statistics derived from a CarpetSpec.
//
// The JSON form is what carpet_specifications.json contains; the text form
// written by WriteStats carries exactly the same values.
type Stats struct {
	Dimensions Dimensions         `json:"dimensions"`
	Weaving    Weaving            `json:"weaving"`
	Production ProductionEstimate `json:"production_estimate"`
}

// ComputeStats derives production statistics from a carpet spec.
//
//	density     = (shaneh / 10) * tar            per dm²
//	total_knots = width_m*shaneh*10 * height_m*tar*10
//
// Densities are truncated toward zero. The knot count is rounded to the
// nearest integer and area to two decimals.
func ComputeStats(s CarpetSpec) Stats {
	density := DensityPerDM2(s)
	widthM := float64(s.WidthCM) / 100
	heightM := float64(s.HeightCM) / 100
	totalKnots := (widthM * float64(s.Shaneh) * 10) * (heightM * float64(s.Tar) * 10)

	return Stats{
		Dimensions: Dimensions{
			WidthCM:  s.WidthCM,
			HeightCM: s.HeightCM,
			WidthM:   widthM,
			HeightM:  heightM,
		},
		Weaving: Weaving{
			ShanehPer10CM: s.Shaneh,
			TarPer10CM:    s.Tar,
			DensityPerDM2: int(density),
			DensityPerM2:  int(density * 100),
			Raj:           s.Shaneh,
		},
		Production: ProductionEstimate{
			AreaM2:     math.Round(widthM*heightM*100) / 100,
			TotalKnots: int64(math.Round(totalKnots)),
		},
	}
}

// Text renders the human-readable twin of the JSON statistics.
func (st Stats) Text() string {
	p := message.NewPrinter(language.English)
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nCarpet Technical Specifications\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Dimensions:\n")
	fmt.Fprintf(&b, "  - Width: %d cm (%.2f m)\n", st.Dimensions.WidthCM, st.Dimensions.WidthM)
	fmt.Fprintf(&b, "  - Height: %d cm (%.2f m)\n", st.Dimensions.HeightCM, st.Dimensions.HeightM)
	fmt.Fprintf(&b, "  - Area: %.2f m²\n\n", st.Production.AreaM2)
	fmt.Fprintf(&b, "Weaving:\n")
	fmt.Fprintf(&b, "  - Shaneh: %d (knots per 10 cm of width)\n", st.Weaving.ShanehPer10CM)
	fmt.Fprintf(&b, "  - Tar: %d (knots per 10 cm of height)\n", st.Weaving.TarPer10CM)
	b.WriteString(p.Sprintf("  - Density: %d knots/dm², %d knots/m²\n\n", st.Weaving.DensityPerDM2, st.Weaving.DensityPerM2))
	fmt.Fprintf(&b, "Production estimate:\n")
	b.WriteString(p.Sprintf("  - Total knots: %d\n", st.Production.TotalKnots))
	return b.String()
}

// Stats file names inside a run directory.
const (
	StatsJSONName = "carpet_specifications.json"
	StatsTextName = "carpet_specifications.txt"
)

// WriteStats computes statistics for s and writes both the JSON record and
// its text twin into dir. It returns the two paths written.
func WriteStats(dir string, s CarpetSpec) (jsonPath, textPath string, err error) {
	st := ComputeStats(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(st); err != nil {
		return "", "", fmt.Errorf("failed to encode carpet statistics: %w", err)
	}

	jsonPath = filepath.Join(dir, StatsJSONName)
	if err := os.WriteFile(jsonPath, buf.Bytes(), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", StatsJSONName, err)
	}

	textPath = filepath.Join(dir, StatsTextName)
	if err := os.WriteFile(textPath, []byte(st.Text()), 0o644); err != nil {
		return jsonPath, "", fmt.Errorf("failed to write %s: %w", StatsTextName, err)
	}
	return jsonPath, textPath, nil
}
