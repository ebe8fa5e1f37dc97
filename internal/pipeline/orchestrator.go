package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/carpet-design/internal/engine"
	"github.com/ironsheep/carpet-design/internal/geometry"
	"github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/quantize"
	"github.com/ironsheep/carpet-design/internal/vector"
)

// Vectorizer traces a raster design into an SVG file.
type Vectorizer interface {
	Vectorize(ctx context.Context, img image.Image, outputPath string, opts vector.Options) (string, error)
}

// Options wires an Orchestrator.
type Options struct {
	// Factory builds engines; required.
	Factory engine.Factory
	// Cache holds engines between runs. A new cache is created when nil.
	Cache *engine.Cache
	// Logger receives structured stage logs. Discarded when nil.
	Logger logrus.FieldLogger

	// NewVectorizer resolves the tracer for a run. Defaults to vector.New.
	NewVectorizer func(executable string) (Vectorizer, error)
	// RenderPDF converts the traced SVG. Defaults to vector.RasterizeToPDF.
	RenderPDF func(svgPath, pdfPath string) error
	// Now is the clock used for run directories and the report.
	Now func() time.Time
}

// Orchestrator runs the carpet design pipeline. One run at a time; engines
// cached by the first run are reused by later ones.
type Orchestrator struct {
	factory       engine.Factory
	cache         *engine.Cache
	logger        logrus.FieldLogger
	newVectorizer func(string) (Vectorizer, error)
	renderPDF     func(string, string) error
	now           func() time.Time

	mu      sync.Mutex
	running bool
	palette quantize.Palette
	spec    *geometry.CarpetSpec
}

// New returns an Orchestrator for opts.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		factory:       opts.Factory,
		cache:         opts.Cache,
		logger:        opts.Logger,
		newVectorizer: opts.NewVectorizer,
		renderPDF:     opts.RenderPDF,
		now:           opts.Now,
	}
	if o.cache == nil {
		o.cache = engine.NewCache()
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}
	if o.newVectorizer == nil {
		o.newVectorizer = func(executable string) (Vectorizer, error) {
			v, err := vector.New(executable)
			if err != nil {
				return nil, err
			}
			o.logger.WithField("tracer", v.Path()).Debug("vector tracer resolved")
			return v, nil
		}
	}
	if o.renderPDF == nil {
		o.renderPDF = vector.RasterizeToPDF
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// SetCustomPalette makes later runs quantize to p instead of deriving a
// palette. An empty palette restores automatic quantization.
func (o *Orchestrator) SetCustomPalette(p quantize.Palette) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrBusy
	}
	o.palette = append(quantize.Palette(nil), p...)
	return nil
}

// SetCarpetSpec sets the physical carpet later runs are sized for. A nil
// spec keeps the input resolution and skips production statistics.
func (o *Orchestrator) SetCarpetSpec(spec *geometry.CarpetSpec) error {
	if spec != nil {
		if err := spec.Validate(); err != nil {
			return errors.Wrap(err, "invalid carpet specification")
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrBusy
	}
	if spec == nil {
		o.spec = nil
		return nil
	}
	s := *spec
	o.spec = &s
	return nil
}

// CarpetSpec returns the spec later runs will use, or nil.
func (o *Orchestrator) CarpetSpec() *geometry.CarpetSpec {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.spec == nil {
		return nil
	}
	s := *o.spec
	return &s
}


// run carries the state of one Process call.
type run struct {
	ctx      context.Context
	cfg      RunConfig
	progress ProgressSink
	logs     LogSink
	log      logrus.FieldLogger
	plan     *Plan
	result   *Result

	palette quantize.Palette
	spec    *geometry.CarpetSpec

	// working is the image every stage transforms; segmented is the output
	// of background removal, kept as a tile control image; edges is the
	// refined edge map, if computed.
	working   image.Image
	segmented image.Image
	edges     *image.Gray
}

func (r *run) say(format string, args ...any) {
	r.logs.Log(fmt.Sprintf(format, args...))
}

func (r *run) banner(stage string) {
	r.say("%s\nStep %d/%d: %s\n%s", rule, r.result.CurrentStep+1, r.result.TotalSteps, stage, rule)
}

func (r *run) save(img image.Image, name, key string) error {
	path := filepath.Join(r.result.OutputDir, name)
	if err := imaging.SavePNG(img, path); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	r.result.addArtifact(key, path)
	return nil
}

func (r *run) saveIntermediate(img image.Image, name, key string) error {
	if !r.cfg.SaveIntermediate {
		return nil
	}
	return r.save(img, name, key)
}

// checkpoint is a cancellation boundary.
func (r *run) checkpoint(next Stage) error {
	if err := r.ctx.Err(); err != nil {
		r.log.WithField("stage", next).Warn("run cancelled")
		r.say("Processing cancelled by user.")
		return &CancelledError{Stage: string(next), Cause: err}
	}
	return nil
}

// Process runs every enabled stage over input and writes artifacts under a
// new timestamped directory inside outputDir.
//
// The returned Result is never nil. On cancellation it is partially filled
// and err is a *CancelledError; on any other fatal error the partial Result
// is returned with that error. progress and logs may be nil.
func (o *Orchestrator) Process(ctx context.Context, input image.Image, outputDir string, cfg RunConfig, progress ProgressSink, logs LogSink) (*Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return &Result{Artifacts: map[string]string{}}, ErrBusy
	}
	o.running = true
	palette := append(quantize.Palette(nil), o.palette...)
	var spec *geometry.CarpetSpec
	if o.spec != nil {
		s := *o.spec
		spec = &s
	}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	if progress == nil {
		progress = nopSink{}
	}
	if logs == nil {
		logs = nopSink{}
	}

	started := o.now()
	result := &Result{
		RunID:      uuid.NewString(),
		Started:    started,
		Original:   input,
		Artifacts:  map[string]string{},
		TotalSteps: cfg.TotalSteps(),
	}

	r := &run{
		ctx:      ctx,
		cfg:      cfg,
		progress: progress,
		logs:     logs,
		result:   result,
		palette:  palette,
		spec:     spec,
	}
	r.log = o.logger.WithFields(logrus.Fields{"run_id": result.RunID, "total": result.TotalSteps})

	if input == nil || input.Bounds().Empty() {
		return result, errors.New("input image is empty")
	}

	result.OutputDir = filepath.Join(outputDir, started.Format("20060102_150405"))
	if err := os.MkdirAll(result.OutputDir, 0o755); err != nil {
		return result, errors.Wrap(err, "create output directory")
	}
	r.say("Output directory for this run: %s", result.OutputDir)

	plan, err := NewPlan(cfg)
	if err != nil {
		return result, err
	}
	r.plan = plan

	if err := r.checkpoint(StageGeometry); err != nil {
		return o.abort(r, err)
	}
	r.working = imaging.Clone(input)
	r.say("Received input image of %dx%d pixels.", input.Bounds().Dx(), input.Bounds().Dy())
	progress.Progress(0, result.TotalSteps)

	for _, stage := range plan.Stages() {
		if err := r.checkpoint(stage); err != nil {
			return o.abort(r, err)
		}
		if err := o.runStage(r, stage); err != nil {
			r.log.WithField("stage", stage).WithError(err).Error("stage failed")
			r.say("Stage %s failed: %v", stage, err)
			return o.abort(r, errors.Wrapf(err, "stage %s", stage))
		}
	}

	if err := o.writeRecords(r); err != nil {
		return result, err
	}

	r.log.WithFields(logrus.Fields{
		"elapsed": o.now().Sub(started).Round(time.Millisecond).String(),
		"engines": o.cache.Len(),
	}).Info("run complete")
	return result, nil
}

// abort keeps the report and plan of a cancelled or failed run on disk when
// it can. err is returned as is.
func (o *Orchestrator) abort(r *run, err error) (*Result, error) {
	r.result.Error = err.Error()
	if werr := o.writeRecords(r); werr != nil {
		r.log.WithError(werr).Warn("unable to write run records")
	}
	return r.result, err
}

// stageFunc returns the report for the stage it ran. A non-nil error aborts
// the run.
type stageFunc func(r *run) (StageReport, error)

func (o *Orchestrator) runStage(r *run, stage Stage) error {
	fns := map[Stage]stageFunc{
		StageGeometry:         o.geometryStage,
		StageRemoveBackground: o.removeBackgroundStage,
		StageDetectEdges:      o.detectEdgesStage,
		StageGenerateDesign:   o.generateStage,
		StageQuantizeColors:   o.quantizeStage,
		StageApplySymmetry:    o.symmetryStage,
		StageVectorize:        o.vectorizeStage,
		StageFinalize:         o.finalizeStage,
	}
	fn, ok := fns[stage]
	if !ok {
		return errors.Errorf("unknown stage %q", stage)
	}

	counted := r.cfg.counts(stage)
	step := r.result.CurrentStep
	if counted {
		step++
	}
	log := r.log.WithFields(logrus.Fields{"stage": stage, "step": step})
	log.Debug("stage starting")

	start := o.now()
	rep, err := fn(r)
	rep.Stage = stage
	rep.Duration = o.now().Sub(start)
	if err != nil {
		rep.Status = StatusFailed
		rep.Message = err.Error()
	}
	if counted {
		rep.Step = step
	}
	r.result.record(rep)
	if markErr := r.plan.Mark(stage, rep.Status); markErr != nil {
		log.WithError(markErr).Debug("unable to mark plan")
	}
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"status": rep.Status, "duration": rep.Duration.String()}).Info("stage finished")
	if counted {
		r.result.CurrentStep = step
		r.progress.Progress(step, r.result.TotalSteps)
	}
	return nil
}

// engineContext hides cancellation from engines so a stage that has started
// is never interrupted.
func (r *run) engineContext() context.Context {
	return context.WithoutCancel(r.ctx)
}
