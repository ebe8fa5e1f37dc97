package pipeline

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/carpet-design/internal/engine"
	"github.com/ironsheep/carpet-design/internal/geometry"
	carpetimg "github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/quantize"
	"github.com/ironsheep/carpet-design/internal/symmetry"
)

// Intermediate artifact file names.
const (
	knotResolutionName    = "01_knot_resolution.png"
	backgroundRemovedName = "02_background_removed.png"
	edgesName             = "03_edges.png"
	generatedName         = "04_ai_generated.png"
	quantizedName         = "05_quantized.png"
	paletteName           = "05_palette.png"
	fourWayName           = "06_four_way_symmetry.png"
	medallionName         = "07_medallion_layout.png"
	finalPNGName          = "final_design.png"
	finalSVGName          = "final_design.svg"
	finalPDFName          = "final_design.pdf"
	knotChartName         = "knot_chart.png"
)

// Knot chart layout: a grid line per knot on 6x6 pixel cells.
const (
	knotChartSpacing = 1
	knotChartScale   = 6
)

var knotChartLine = carpetimg.RGBColor{R: 60, G: 60, B: 60}

// targetResolution is the knot grid when a carpet is specified, else the
// size of the working image.
func (r *run) targetResolution() geometry.Resolution {
	if r.spec != nil {
		return geometry.KnotResolution(*r.spec)
	}
	b := r.working.Bounds()
	return geometry.Resolution{Width: b.Dx(), Height: b.Dy()}
}

func (o *Orchestrator) geometryStage(r *run) (StageReport, error) {
	r.say("%s\nStep 0: knot resolution\n%s", rule, rule)

	if r.spec == nil {
		res := r.targetResolution()
		r.result.Resolution = res
		r.say("   - No carpet specification set; keeping the input resolution %s.", res)
		return StageReport{Status: StatusSkipped, Message: "no carpet specification"}, nil
	}

	res := geometry.KnotResolution(*r.spec)
	r.result.Resolution = res
	r.say("   - Loom resolution: %d x %d knots", res.Width, res.Height)
	if res.Width == 0 || res.Height == 0 {
		return StageReport{}, errors.Errorf("carpet specification yields an empty knot grid %s", res)
	}

	r.working = imaging.Resize(r.working, res.Width, res.Height, imaging.Lanczos)
	r.say("   - Input image resized to the knot grid.")
	if err := r.saveIntermediate(r.working, knotResolutionName, ArtifactKnotResolution); err != nil {
		return StageReport{}, err
	}
	return StageReport{Status: StatusExecuted, Message: res.String()}, nil
}

const rule = "========================================"

func (o *Orchestrator) removeBackgroundStage(r *run) (StageReport, error) {
	r.banner("background removal")

	seg, err := engine.Get(o.cache, engine.KindSegmenter, "default", o.factory.Segmenter)
	if err != nil {
		return StageReport{}, err
	}

	mask, err := seg.ExtractMainObject(r.engineContext(), r.working, r.cfg.FastSegmentation)
	if err != nil {
		return StageReport{}, errors.Wrap(err, "segmentation")
	}
	if mask == nil {
		r.say("No dominant object found; continuing with the original image.")
		r.log.WithField("stage", StageRemoveBackground).Warn("no foreground mask")
		r.segmented = r.working
		return StageReport{Status: StatusDegraded, Message: "no dominant object found"}, nil
	}
	if mask.Bounds().Size() != r.working.Bounds().Size() {
		return StageReport{}, errors.Errorf("segmentation mask is %v, image is %v", mask.Bounds().Size(), r.working.Bounds().Size())
	}

	r.working = engine.ApplyMask(r.working, mask, r.cfg.MaskBackground)
	r.segmented = r.working
	if err := r.saveIntermediate(r.working, backgroundRemovedName, ArtifactBackgroundRemoved); err != nil {
		return StageReport{}, err
	}
	r.say("Background removed.")
	return StageReport{Status: StatusExecuted}, nil
}

func (o *Orchestrator) detectEdgesStage(r *run) (StageReport, error) {
	r.banner("edge detection")

	method := r.cfg.EdgeMethod
	det, err := engine.Get(o.cache, engine.KindEdgeDetector, method, func() (engine.EdgeDetector, error) {
		return o.factory.EdgeDetector(method)
	})
	if err != nil {
		return StageReport{}, err
	}

	edges, err := det.DetectEdges(r.engineContext(), r.working)
	if err != nil {
		return StageReport{}, errors.Wrap(err, "edge detection")
	}
	r.edges = det.Refine(edges)
	if err := r.saveIntermediate(r.edges, edgesName, ArtifactEdges); err != nil {
		return StageReport{}, err
	}
	r.say("Edges detected.")
	return StageReport{Status: StatusExecuted, Message: method}, nil
}

// skip logs and records a ConfigurationError.
func (r *run) skip(stage Stage, reason string) StageReport {
	cfgErr := &ConfigurationError{Stage: string(stage), Reason: reason}
	r.log.WithField("stage", stage).Warn(cfgErr.Error())
	r.say("Skipping: %s.", reason)
	return StageReport{Status: StatusSkipped, Message: reason}
}

// prompt appends the carpet description to the configured prompt.
func (r *run) prompt() string {
	p := r.cfg.Generation.Prompt
	if r.spec != nil {
		p += fmt.Sprintf(", carpet design for %dx%dcm, %d raj density", r.spec.WidthCM, r.spec.HeightCM, r.spec.Shaneh)
	}
	return p
}

func (o *Orchestrator) generateStage(r *run) (StageReport, error) {
	r.banner("AI design generation")

	gen := r.cfg.Generation
	if gen.BaseModel == "" || gen.ControlModel == "" {
		return r.skip(StageGenerateDesign, "base model or control model not configured"), nil
	}

	var control image.Image
	if gen.TileControl() {
		r.say("Tile control model: the image itself is the control input.")
		control = r.segmented
		if control == nil {
			control = r.working
		}
	} else {
		if r.edges == nil {
			return r.skip(StageGenerateDesign, "edge detection is off, so the control model has no input"), nil
		}
		control = r.edges
	}

	g, err := engine.Get(o.cache, engine.KindGenerator, engine.GeneratorKey(gen.BaseModel, gen.ControlModel), func() (engine.Generator, error) {
		r.say("Loading generator (base %s, control %s)...", gen.BaseModel, gen.ControlModel)
		return o.factory.Generator(gen.BaseModel, gen.ControlModel)
	})
	if err != nil {
		return StageReport{}, err
	}

	size := r.targetResolution().Floor8()
	images, err := g.Generate(r.engineContext(), engine.GenerateRequest{
		Control:           control,
		Prompt:            r.prompt(),
		NegativePrompt:    gen.NegativePrompt,
		Steps:             gen.Steps,
		GuidanceScale:     gen.GuidanceScale,
		ConditioningScale: gen.ConditioningScale,
		Seed:              gen.Seed,
		Width:             size.Width,
		Height:            size.Height,
	})
	if err != nil {
		return StageReport{}, errors.Wrap(err, "generation")
	}
	if len(images) == 0 {
		return StageReport{}, errors.New("generation returned no images")
	}

	r.working = carpetimg.Clone(images[0])
	if err := r.saveIntermediate(r.working, generatedName, ArtifactGenerated); err != nil {
		return StageReport{}, err
	}
	r.say("New design generated at %s.", size)
	return StageReport{Status: StatusExecuted, Message: size.String()}, nil
}

func (o *Orchestrator) quantizeStage(r *run) (StageReport, error) {
	r.banner("colour reduction")

	q := quantize.New(r.cfg.Metric)
	var (
		out     *image.NRGBA
		palette quantize.Palette
		err     error
	)
	if len(r.palette) > 0 {
		r.say("Using custom palette with %d colours.", len(r.palette))
		out, palette, err = q.Apply(r.working, r.palette)
	} else {
		r.say("Quantizing automatically to %d colours.", r.cfg.NColors)
		out, palette, err = q.Auto(r.working, r.cfg.NColors)
	}
	if err != nil {
		return StageReport{}, errors.Wrap(err, "quantization")
	}

	if err := r.saveIntermediate(out, quantizedName, ArtifactQuantized); err != nil {
		return StageReport{}, err
	}
	swatch := carpetimg.PaletteSwatch(palette, carpetimg.SwatchWidth, carpetimg.SwatchHeight)
	if err := r.saveIntermediate(swatch, paletteName, ArtifactPaletteSwatch); err != nil {
		return StageReport{}, err
	}
	infoPath, err := quantize.WriteColorInfo(r.result.OutputDir, palette)
	if err != nil {
		return StageReport{}, errors.Wrap(err, "write colour info")
	}
	r.result.addArtifact(ArtifactColorInfo, infoPath)
	r.say("   - Colour information saved to %s.", quantize.ColorInfoName)

	r.working = out
	r.result.Palette = palette
	r.say("Colours reduced.")
	return StageReport{Status: StatusExecuted, Message: fmt.Sprintf("%d colours", len(palette))}, nil
}

func (o *Orchestrator) symmetryStage(r *run) (StageReport, error) {
	if r.cfg.IsFullDesign {
		r.say("%s\nSymmetry and medallion layout skipped: the input is a complete design.\n%s", rule, rule)
		r.log.WithField("stage", StageApplySymmetry).Info("skipped for full design")
		return StageReport{Status: StatusSkipped, Message: "input is a full design"}, nil
	}
	r.banner("symmetry and medallion layout")

	fourWay := symmetry.FourWayMirror(r.working)
	if err := r.saveIntermediate(fourWay, fourWayName, ArtifactFourWay); err != nil {
		return StageReport{}, err
	}

	res := r.targetResolution()
	layout, err := symmetry.Medallion(fourWay, res.Width, res.Height, r.cfg.MedallionBackground)
	if err != nil {
		return StageReport{}, errors.Wrap(err, "medallion layout")
	}
	if err := r.saveIntermediate(layout, medallionName, ArtifactMedallion); err != nil {
		return StageReport{}, err
	}

	r.working = layout
	r.say("Symmetry and medallion layout applied.")
	return StageReport{Status: StatusExecuted}, nil
}

// vectorizeStage never aborts the run: the raster design is authoritative.
func (o *Orchestrator) vectorizeStage(r *run) (StageReport, error) {
	r.banner("vectorization")

	fail := func(err error) (StageReport, error) {
		r.log.WithField("stage", StageVectorize).WithError(err).Warn("vectorization failed")
		r.say("Vectorization error: %v", err)
		return StageReport{Status: StatusFailed, Message: err.Error()}, nil
	}

	v, err := o.newVectorizer(r.cfg.Vector.Executable)
	if err != nil {
		return fail(err)
	}

	svgPath := filepath.Join(r.result.OutputDir, finalSVGName)
	if _, err := v.Vectorize(r.engineContext(), r.working, svgPath, r.cfg.Vector.Options); err != nil {
		return fail(err)
	}
	r.result.addArtifact(ArtifactFinalSVG, svgPath)

	pdfPath := filepath.Join(r.result.OutputDir, finalPDFName)
	if err := o.renderPDF(svgPath, pdfPath); err != nil {
		return fail(err)
	}
	r.result.addArtifact(ArtifactFinalPDF, pdfPath)

	r.say("Vectorization complete.")
	return StageReport{Status: StatusExecuted}, nil
}

func (o *Orchestrator) finalizeStage(r *run) (StageReport, error) {
	if err := r.save(r.working, finalPNGName, ArtifactFinalPNG); err != nil {
		return StageReport{}, err
	}
	b := r.working.Bounds()
	r.say("Final design saved at exactly %dx%d: %s", b.Dx(), b.Dy(), r.result.Artifacts[ArtifactFinalPNG])

	if r.spec != nil {
		jsonPath, textPath, err := geometry.WriteStats(r.result.OutputDir, *r.spec)
		if err != nil {
			return StageReport{}, errors.Wrap(err, "write carpet statistics")
		}
		r.result.addArtifact(ArtifactSpecsJSON, jsonPath)
		r.result.addArtifact(ArtifactSpecsText, textPath)
		r.say("   - Carpet specifications saved as JSON and text.")
	}

	// Without a carpet the working image is still the photo, not a knot grid.
	if r.cfg.SaveIntermediate && r.spec != nil {
		if err := r.saveKnotChart(); err != nil {
			return StageReport{}, err
		}
	}

	return StageReport{Status: StatusExecuted}, nil
}

func (r *run) saveKnotChart() error {
	b := r.working.Bounds()
	scale := carpetimg.FitKnotChartScale(b.Size(), knotChartScale)
	if scale == 0 {
		r.say("   - Knot chart skipped: %dx%d knots is too large to draw.", b.Dx(), b.Dy())
		return nil
	}
	chart, err := carpetimg.KnotChart(r.working, knotChartSpacing, scale, knotChartLine)
	if err != nil {
		return errors.Wrap(err, "knot chart")
	}
	return r.save(chart, knotChartName, ArtifactKnotChart)
}

// writeRecords stores the plan rendering and the processing report once all
// stages, finalize included, have been recorded.
func (o *Orchestrator) writeRecords(r *run) error {
	r.result.Finished = o.now()

	if r.cfg.SaveIntermediate {
		path, err := r.plan.WriteDOT(r.result.OutputDir)
		if err != nil {
			return err
		}
		r.result.addArtifact(ArtifactPlan, path)
	}

	r.result.addArtifact(ArtifactReport, filepath.Join(r.result.OutputDir, ReportName))
	_, err := r.result.writeReport()
	return err
}
