package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/carpet-design/internal/config"
	"github.com/ironsheep/carpet-design/internal/engine"
	"github.com/ironsheep/carpet-design/internal/geometry"
	"github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/pipeline"
	"github.com/ironsheep/carpet-design/internal/profile"
	"github.com/ironsheep/carpet-design/internal/quantize"
	"github.com/ironsheep/carpet-design/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `carpet-design - turn a photo or sketch into a weavable carpet design

Usage:
  carpet-design [options] INPUT          run the pipeline once
  carpet-design palette [options] INPUT  print a k-means palette of INPUT
  carpet-design serve [options]          MCP server on stdin/stdout
  carpet-design profiles [options]       list saved loom profiles
  carpet-design version

Environment variables:
  CARPET_GENERATION_ENDPOINT  diffusion service base URL
  CARPET_VTRACER              vtracer executable
  CARPET_LOG_LEVEL            debug, info, warn, error
  CARPET_OUTPUT_DIR           default output directory

Options:
`

type options struct {
	configPath string
	outputDir  string
	debug      bool

	width, height, shaneh, tar int
	palette                    string
	paletteFile                string
	nColors                    int
	profile                    string
	saveProfile                string

	toggles config.Toggles
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("carpet-design", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "model configuration file")
	fs.StringVar(&opts.outputDir, "output", "", "output directory (default from configuration)")
	fs.BoolVar(&opts.debug, "debug", false, "verbose text logging")

	fs.IntVar(&opts.width, "width", 0, "carpet width in cm")
	fs.IntVar(&opts.height, "height", 0, "carpet height in cm")
	fs.IntVar(&opts.shaneh, "shaneh", 0, "knots per 10 cm of width")
	fs.IntVar(&opts.tar, "tar", 0, "knots per 10 cm of height")
	fs.StringVar(&opts.palette, "palette", "", "custom palette as comma separated hex colours")
	fs.StringVar(&opts.paletteFile, "palette-file", "", "custom palette from a color_info.json written by an earlier run")
	fs.IntVar(&opts.nColors, "colors", 0, "number of colours for automatic quantization")
	fs.StringVar(&opts.profile, "profile", "", "apply a saved loom profile")
	fs.StringVar(&opts.saveProfile, "save-profile", "", "store shaneh, tar and palette under this name after the run")

	t := &opts.toggles
	fs.BoolVar(&t.RemoveBackground, "remove-background", false, "segment the main object")
	fs.BoolVar(&t.DetectEdges, "edges", false, "compute the edge control map")
	fs.BoolVar(&t.GenerateDesign, "generate", false, "redesign with the diffusion service")
	fs.BoolVar(&t.QuantizeColors, "quantize", false, "reduce to a yarn palette")
	fs.BoolVar(&t.ApplySymmetry, "symmetry", false, "four-way mirror and medallion layout")
	fs.BoolVar(&t.Vectorize, "vectorize", false, "trace to SVG and PDF with vtracer")
	fs.BoolVar(&t.IsFullDesign, "full-design", false, "the input is already a complete design")
	fs.BoolVar(&t.SaveIntermediate, "save-intermediate", false, "keep every stage's image")
	fs.BoolVar(&t.FastSegmentation, "fast-segmentation", false, "segment only the object under the centre")
	fs.StringVar(&t.BaseModel, "base-model", "", "diffusion base model")
	fs.StringVar(&t.ControlModel, "control-model", "", "control model (a name containing \"tile\" conditions on the image)")
	return fs
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "process"
	if len(args) > 0 {
		switch args[0] {
		case "serve", "palette", "profiles":
			cmd, args = args[0], args[1:]
		case "version", "--version", "-v":
			fmt.Printf("carpet-design %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return 0
		}
	}

	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := config.LoadEnv(".env", ".env.local"); err != nil {
		fmt.Fprintf(os.Stderr, "carpet-design: %v\n", err)
		return 1
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "carpet-design: %v\n", err)
		return 1
	}
	logger := initLogger(opts.debug, cfg)
	if opts.outputDir != "" {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.nColors != 0 {
		cfg.Processing.ColorQuantization.NColors = opts.nColors
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, err := profile.Open(filepath.Join(filepath.Dir(opts.configPath), profile.FileName))
	if err != nil {
		logger.WithError(err).Error("unable to open profiles")
		return 1
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, profiles, logger)
	case "palette":
		err = printPalette(ctx, fs.Args(), cfg)
	case "profiles":
		err = listProfiles(profiles)
	default:
		err = process(ctx, fs.Args(), &opts, cfg, profiles, logger)
	}

	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			logger.Warn("cancelled")
			return 130
		}
		logger.WithError(err).Error("failed")
		return 1
	}
	return 0
}

// initLogger writes to stderr; stdout carries results and MCP traffic.
func initLogger(debug bool, cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.Debug("Debug logging enabled")
		return logger
	}

	level, err := cfg.Level()
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	return logger
}

func newOrchestrator(cfg *config.Config, logger *logrus.Logger) *pipeline.Orchestrator {
	return pipeline.New(pipeline.Options{
		Factory: engine.NewDefaultFactory(cfg.FactoryOptions(logger)),
		Logger:  logger,
	})
}

func serve(ctx context.Context, cfg *config.Config, profiles *profile.Store, logger *logrus.Logger) error {
	server.Version = Version
	logger.WithFields(logrus.Fields{"version": Version, "commit": GitCommit}).Info("MCP server starting")

	srv := server.New(server.Options{
		Orchestrator: newOrchestrator(cfg, logger),
		Config:       cfg,
		Profiles:     profiles,
		Logger:       logger,
	})
	return srv.Run(ctx, os.Stdin, os.Stdout)
}

func printPalette(ctx context.Context, args []string, cfg *config.Config) error {
	if len(args) != 1 {
		return errors.New("palette needs exactly one input image")
	}
	n := cfg.Processing.ColorQuantization.NColors
	if err := quantize.ValidateColorCount(n); err != nil {
		return err
	}
	img, err := imaging.LoadImage(args[0])
	if err != nil {
		return err
	}
	p, err := quantize.Extract(ctx, img, n, 0)
	if err != nil {
		return err
	}
	return writeJSON(p.Info())
}

func listProfiles(profiles *profile.Store) error {
	out := map[string]profile.Profile{}
	for _, name := range profiles.Names() {
		p, err := profiles.Get(name)
		if err != nil {
			return err
		}
		out[name] = p
	}
	return writeJSON(out)
}

// carpetSpec merges flags, a saved profile and the configuration file. Flags
// win over the profile, which wins over the file.
func carpetSpec(opts *options, cfg *config.Config, prof *profile.Profile) *geometry.CarpetSpec {
	spec := cfg.CarpetSpec()
	if spec == nil && (opts.width != 0 || opts.height != 0 || opts.shaneh != 0 || opts.tar != 0 || prof != nil) {
		s := geometry.DefaultSpec
		spec = &s
	}
	if spec == nil {
		return nil
	}
	if prof != nil {
		spec.Shaneh, spec.Tar = prof.Shaneh, prof.Tar
	}
	for _, o := range []struct {
		flag int
		dst  *int
	}{
		{opts.width, &spec.WidthCM},
		{opts.height, &spec.HeightCM},
		{opts.shaneh, &spec.Shaneh},
		{opts.tar, &spec.Tar},
	} {
		if o.flag != 0 {
			*o.dst = o.flag
		}
	}
	return spec
}

func process(ctx context.Context, args []string, opts *options, cfg *config.Config, profiles *profile.Store, logger *logrus.Logger) error {
	if len(args) != 1 {
		return errors.New("exactly one input image is required (see -h)")
	}

	var prof *profile.Profile
	if opts.profile != "" {
		p, err := profiles.Get(opts.profile)
		if err != nil {
			return err
		}
		prof = &p
		logger.WithField("profile", opts.profile).Info("profile applied")
	}
	palette, err := customPalette(opts, prof)
	if err != nil {
		return err
	}

	rc, err := cfg.RunConfig(opts.toggles)
	if err != nil {
		return err
	}
	img, err := imaging.LoadImage(args[0])
	if err != nil {
		return err
	}

	orch := newOrchestrator(cfg, logger)
	spec := carpetSpec(opts, cfg, prof)
	if err := orch.SetCarpetSpec(spec); err != nil {
		return err
	}
	if err := orch.SetCustomPalette(palette); err != nil {
		return err
	}

	progress := pipeline.ProgressFunc(func(current, total int) {
		logger.WithFields(logrus.Fields{"step": current, "total": total}).Debug("progress")
	})
	result, err := orch.Process(ctx, img, cfg.Output.Dir, rc, progress, pipeline.LoggerSink(logger))
	if err != nil {
		return err
	}

	if opts.saveProfile != "" {
		if err := saveProfile(profiles, opts.saveProfile, spec, palette, result); err != nil {
			return err
		}
		logger.WithField("profile", opts.saveProfile).Info("profile saved")
	}
	return writeJSON(result)
}

// customPalette picks the run's palette: -palette or -palette-file, else the
// profile's, else none.
func customPalette(opts *options, prof *profile.Profile) (quantize.Palette, error) {
	switch {
	case opts.palette != "" && opts.paletteFile != "":
		return nil, errors.New("-palette and -palette-file are mutually exclusive")
	case opts.palette != "":
		custom, err := imaging.ParsePalette(opts.palette)
		if err != nil {
			return nil, err
		}
		return custom, nil
	case opts.paletteFile != "":
		return quantize.ReadColorInfo(opts.paletteFile)
	case prof != nil:
		return prof.Colors()
	}
	return nil, nil
}

// saveProfile keeps the densities of this run with the custom palette, or
// the derived one when none was given.
func saveProfile(profiles *profile.Store, name string, spec *geometry.CarpetSpec, palette quantize.Palette, result *pipeline.Result) error {
	if spec == nil {
		return errors.New("saving a profile needs a carpet specification (-shaneh and -tar)")
	}
	if len(palette) == 0 {
		palette = result.Palette
	}
	return profiles.Save(name, profile.NewProfile(spec.Shaneh, spec.Tar, palette))
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
