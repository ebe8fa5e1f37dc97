package pipeline

import (
	"strings"

	"github.com/ironsheep/carpet-design/internal/engine"
	"github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/quantize"
	"github.com/ironsheep/carpet-design/internal/symmetry"
	"github.com/ironsheep/carpet-design/internal/vector"
)

// GenerationParams configures the generative redesign stage.
type GenerationParams struct {
	BaseModel    string `json:"base_model_path"`
	ControlModel string `json:"controlnet_path"`

	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`

	Steps             int     `json:"steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	ConditioningScale float64 `json:"controlnet_scale"`
	// Seed -1 picks a random seed per run.
	Seed int64 `json:"seed"`
}

// TileControl reports whether the control model conditions on the image
// itself rather than on an edge map.
func (g GenerationParams) TileControl() bool {
	return strings.Contains(strings.ToLower(g.ControlModel), "tile")
}

// VectorParams configures the vectorization stage.
type VectorParams struct {
	// Executable is the tracer to run; empty means vtracer on PATH.
	Executable string `json:"executable,omitempty"`
	vector.Options
}

// RunConfig is the immutable set of options for one pipeline run.
//
// Stage toggles are independent, except that ApplySymmetry has no effect when
// IsFullDesign is set. Build one per run and pass it by value; the
// orchestrator never modifies it.
type RunConfig struct {
	RemoveBackground bool `json:"remove_background"`
	DetectEdges      bool `json:"detect_edges"`
	GenerateDesign   bool `json:"generate_design"`
	QuantizeColors   bool `json:"quantize_colors"`
	ApplySymmetry    bool `json:"apply_symmetry"`
	Vectorize        bool `json:"vectorize"`

	IsFullDesign     bool `json:"is_full_design"`
	SaveIntermediate bool `json:"save_intermediate"`
	// FastSegmentation selects the single centre-point segmentation mode.
	FastSegmentation bool `json:"sam_fast_mode"`

	EdgeMethod string          `json:"edge_method"`
	NColors    int             `json:"n_colors"`
	Metric     quantize.Metric `json:"metric"`

	// MaskBackground fills pixels the segmenter removed.
	MaskBackground imaging.RGBColor `json:"mask_background"`
	// MedallionBackground is the field colour around the medallion.
	MedallionBackground imaging.RGBColor `json:"medallion_background_color"`

	Generation GenerationParams `json:"generation"`
	Vector     VectorParams     `json:"vector"`
}

// DefaultRunConfig enables nothing and carries the stock parameters.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		EdgeMethod:          engine.EdgeMethodCanny,
		NColors:             8,
		Metric:              quantize.MetricRGB,
		MaskBackground:      imaging.RGBColor{R: 255, G: 255, B: 255},
		MedallionBackground: symmetry.DefaultBackground,
		Generation: GenerationParams{
			Prompt:            "persian carpet design, intricate traditional pattern, symmetric, high detail",
			NegativePrompt:    "blurry, low quality, distorted, text, watermark",
			Steps:             30,
			GuidanceScale:     7.5,
			ConditioningScale: 1.0,
			Seed:              -1,
		},
		Vector: VectorParams{Options: vector.DefaultOptions()},
	}
}

// symmetryEnabled applies the is_full_design suppression.
func (c RunConfig) symmetryEnabled() bool {
	return c.ApplySymmetry && !c.IsFullDesign
}

// counts reports whether stage consumes a progress step.
func (c RunConfig) counts(s Stage) bool {
	switch s {
	case StageRemoveBackground:
		return c.RemoveBackground
	case StageDetectEdges:
		return c.DetectEdges
	case StageGenerateDesign:
		return c.GenerateDesign
	case StageQuantizeColors:
		return c.QuantizeColors
	case StageApplySymmetry:
		return c.symmetryEnabled()
	case StageVectorize:
		return c.Vectorize
	}
	return false
}

// TotalSteps counts the enabled stages that report progress. Geometry and
// finalization always run and are not counted.
func (c RunConfig) TotalSteps() int {
	n := 0
	for _, s := range stageOrder {
		if c.counts(s) {
			n++
		}
	}
	return n
}
