// Package config loads the model configuration file and turns it into the
// per-run settings the pipeline consumes.
//
// Values come from three layers, later ones winning: built-in defaults, the
// YAML file, and environment variables (optionally seeded from a .env file).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/carpet-design/internal/engine"
	"github.com/ironsheep/carpet-design/internal/geometry"
	"github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/pipeline"
	"github.com/ironsheep/carpet-design/internal/quantize"
	"github.com/ironsheep/carpet-design/internal/symmetry"
	"github.com/ironsheep/carpet-design/internal/vector"
)

// DefaultPath is where the model configuration is looked up.
const DefaultPath = "config/model_config.yaml"

// Environment overrides.
const (
	EnvEndpoint  = "CARPET_GENERATION_ENDPOINT"
	EnvVTracer   = "CARPET_VTRACER"
	EnvLogLevel  = "CARPET_LOG_LEVEL"
	EnvOutputDir = "CARPET_OUTPUT_DIR"
)

type Config struct {
	Processing   ProcessingConfig   `yaml:"processing"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Generation   GenerationConfig   `yaml:"generation"`
	Output       OutputConfig       `yaml:"output"`
	Vectorize    VectorizeConfig    `yaml:"vectorize"`
	// Carpet is optional; without it runs keep the input resolution.
	Carpet *CarpetConfig `yaml:"carpet,omitempty"`

	LogLevel string `yaml:"log_level"`
}

type ProcessingConfig struct {
	EdgeDetection     EdgeDetectionConfig     `yaml:"edge_detection"`
	ColorQuantization ColorQuantizationConfig `yaml:"color_quantization"`
}

type EdgeDetectionConfig struct {
	Method string `yaml:"method"`
}

type ColorQuantizationConfig struct {
	NColors int    `yaml:"n_colors"`
	Metric  string `yaml:"metric"`
}

type SegmentationConfig struct {
	Tolerance       float64 `yaml:"tolerance"`
	MinArea         int     `yaml:"min_area"`
	BackgroundColor []int   `yaml:"background_color"`
}

type GenerationConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
	BaseModel       string        `yaml:"base_model_path"`
	ControlModel    string        `yaml:"controlnet_path"`
	Steps           int           `yaml:"steps"`
	GuidanceScale   float64       `yaml:"guidance_scale"`
	ControlnetScale float64       `yaml:"controlnet_scale"`
	Seed            int64         `yaml:"seed"`
	Prompts         PromptsConfig `yaml:"prompts"`
}

type PromptsConfig struct {
	Positive string `yaml:"positive"`
	Negative string `yaml:"negative"`
}

type OutputConfig struct {
	Dir                      string `yaml:"dir"`
	SaveIntermediate         bool   `yaml:"save_intermediate"`
	MedallionBackgroundColor []int  `yaml:"medallion_background_color"`
}

type VectorizeConfig struct {
	Executable      string `yaml:"executable"`
	FilterSpeckle   int    `yaml:"filter_speckle"`
	ColorPrecision  int    `yaml:"color_precision"`
	CornerThreshold int    `yaml:"corner_threshold"`
}

type CarpetConfig struct {
	WidthCM  int `yaml:"width_cm"`
	HeightCM int `yaml:"height_cm"`
	Shaneh   int `yaml:"shaneh"`
	Tar      int `yaml:"tar"`
}

// Default returns the built-in configuration.
func Default() *Config {
	run := pipeline.DefaultRunConfig()
	bg := symmetry.DefaultBackground
	return &Config{
		Processing: ProcessingConfig{
			EdgeDetection:     EdgeDetectionConfig{Method: run.EdgeMethod},
			ColorQuantization: ColorQuantizationConfig{NColors: run.NColors, Metric: string(run.Metric)},
		},
		Segmentation: SegmentationConfig{
			Tolerance:       engine.DefaultTolerance,
			MinArea:         engine.DefaultMinArea,
			BackgroundColor: run.MaskBackground.Slice(),
		},
		Generation: GenerationConfig{
			Timeout:         10 * time.Minute,
			Steps:           run.Generation.Steps,
			GuidanceScale:   run.Generation.GuidanceScale,
			ControlnetScale: run.Generation.ConditioningScale,
			Seed:            run.Generation.Seed,
			Prompts: PromptsConfig{
				Positive: run.Generation.Prompt,
				Negative: run.Generation.NegativePrompt,
			},
		},
		Output: OutputConfig{
			Dir:                      "output",
			MedallionBackgroundColor: bg.Slice(),
		},
		Vectorize: VectorizeConfig{
			FilterSpeckle:   vector.DefaultFilterSpeckle,
			ColorPrecision:  vector.DefaultColorPrecision,
			CornerThreshold: vector.DefaultCornerThreshold,
		},
		LogLevel: "info",
	}
}

// LoadEnv reads .env style files into the process environment. Missing files
// are ignored; variables already set are not overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return errors.Wrapf(err, "unable to load %s", f)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "unable to parse %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration %s", path)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvEndpoint); ok {
		c.Generation.Endpoint = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvVTracer); ok {
		c.Vectorize.Executable = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.Output.Dir = v
	}
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if err := quantize.ValidateColorCount(c.Processing.ColorQuantization.NColors); err != nil {
		return err
	}
	if _, err := quantize.ParseMetric(c.Processing.ColorQuantization.Metric); err != nil {
		return err
	}
	if _, err := imaging.ColorFromTriple(c.Segmentation.BackgroundColor); err != nil {
		return errors.Wrap(err, "segmentation.background_color")
	}
	if _, err := imaging.ColorFromTriple(c.Output.MedallionBackgroundColor); err != nil {
		return errors.Wrap(err, "output.medallion_background_color")
	}
	if c.Generation.Steps < 1 {
		return errors.Errorf("generation.steps must be positive, got %d", c.Generation.Steps)
	}
	if c.Carpet != nil {
		if err := c.Carpet.Spec().Validate(); err != nil {
			return errors.Wrap(err, "carpet")
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, errors.Wrap(err, "log_level")
	}
	return lvl, nil
}

// Spec converts the YAML carpet section.
func (c CarpetConfig) Spec() geometry.CarpetSpec {
	return geometry.CarpetSpec{WidthCM: c.WidthCM, HeightCM: c.HeightCM, Shaneh: c.Shaneh, Tar: c.Tar}
}

// CarpetSpec returns the configured carpet, or nil.
func (c *Config) CarpetSpec() *geometry.CarpetSpec {
	if c.Carpet == nil {
		return nil
	}
	s := c.Carpet.Spec()
	return &s
}

// Toggles are the per-run switches chosen by the caller. Model identifiers
// left empty fall back to the configuration file.
type Toggles struct {
	RemoveBackground bool
	DetectEdges      bool
	GenerateDesign   bool
	QuantizeColors   bool
	ApplySymmetry    bool
	Vectorize        bool

	IsFullDesign     bool
	SaveIntermediate bool
	FastSegmentation bool

	BaseModel    string
	ControlModel string
}

// RunConfig builds the immutable run settings for t.
func (c *Config) RunConfig(t Toggles) (pipeline.RunConfig, error) {
	metric, err := quantize.ParseMetric(c.Processing.ColorQuantization.Metric)
	if err != nil {
		return pipeline.RunConfig{}, err
	}
	maskBG, err := imaging.ColorFromTriple(c.Segmentation.BackgroundColor)
	if err != nil {
		return pipeline.RunConfig{}, errors.Wrap(err, "segmentation.background_color")
	}
	medallionBG, err := imaging.ColorFromTriple(c.Output.MedallionBackgroundColor)
	if err != nil {
		return pipeline.RunConfig{}, errors.Wrap(err, "output.medallion_background_color")
	}

	rc := pipeline.DefaultRunConfig()
	rc.RemoveBackground = t.RemoveBackground
	rc.DetectEdges = t.DetectEdges
	rc.GenerateDesign = t.GenerateDesign
	rc.QuantizeColors = t.QuantizeColors
	rc.ApplySymmetry = t.ApplySymmetry
	rc.Vectorize = t.Vectorize
	rc.IsFullDesign = t.IsFullDesign
	rc.SaveIntermediate = t.SaveIntermediate || c.Output.SaveIntermediate
	rc.FastSegmentation = t.FastSegmentation

	rc.EdgeMethod = strings.ToLower(c.Processing.EdgeDetection.Method)
	rc.NColors = c.Processing.ColorQuantization.NColors
	rc.Metric = metric
	rc.MaskBackground = maskBG
	rc.MedallionBackground = medallionBG

	g := c.Generation
	rc.Generation = pipeline.GenerationParams{
		BaseModel:         firstNonEmpty(t.BaseModel, g.BaseModel),
		ControlModel:      firstNonEmpty(t.ControlModel, g.ControlModel),
		Prompt:            g.Prompts.Positive,
		NegativePrompt:    g.Prompts.Negative,
		Steps:             g.Steps,
		GuidanceScale:     g.GuidanceScale,
		ConditioningScale: g.ControlnetScale,
		Seed:              g.Seed,
	}

	v := c.Vectorize
	rc.Vector = pipeline.VectorParams{
		Executable: v.Executable,
		Options: vector.Options{
			FilterSpeckle:   v.FilterSpeckle,
			ColorPrecision:  v.ColorPrecision,
			CornerThreshold: v.CornerThreshold,
		},
	}
	return rc, nil
}

// FactoryOptions configures the built-in engines.
func (c *Config) FactoryOptions(logger logrus.FieldLogger) engine.FactoryOptions {
	return engine.FactoryOptions{
		Tolerance: c.Segmentation.Tolerance,
		MinArea:   c.Segmentation.MinArea,
		Endpoint:  c.Generation.Endpoint,
		Timeout:   c.Generation.Timeout,
		Logger:    logger,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
