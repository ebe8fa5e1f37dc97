package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/carpet-design/internal/engine"
	"github.com/ironsheep/carpet-design/internal/vector"
)

type fakeSegmenter struct {
	// noMask makes ExtractMainObject report that nothing was found.
	noMask bool
	// block, when set, is waited on before returning.
	block   chan struct{}
	entered chan struct{}
	fast    []bool
}

func (s *fakeSegmenter) ExtractMainObject(ctx context.Context, img image.Image, fastMode bool) (*image.Gray, error) {
	s.fast = append(s.fast, fastMode)
	if s.entered != nil {
		close(s.entered)
	}
	if s.block != nil {
		<-s.block
	}
	if s.noMask {
		return nil, nil
	}
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Dy() / 4; y < b.Dy()*3/4; y++ {
		for x := b.Dx() / 4; x < b.Dx()*3/4; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return mask, nil
}

type fakeEdgeDetector struct {
	refined int32
}

func (d *fakeEdgeDetector) DetectEdges(ctx context.Context, img image.Image) (*image.Gray, error) {
	b := img.Bounds()
	edges := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for x := 0; x < b.Dx(); x++ {
		edges.SetGray(x, b.Dy()/2, color.Gray{Y: 255})
	}
	return edges, nil
}

func (d *fakeEdgeDetector) Refine(edges *image.Gray) *image.Gray {
	atomic.AddInt32(&d.refined, 1)
	return edges
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []engine.GenerateRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req engine.GenerateRequest) ([]image.Image, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	img := image.NewNRGBA(image.Rect(0, 0, req.Width, req.Height))
	for y := 0; y < req.Height; y++ {
		for x := 0; x < req.Width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), 90, 255})
		}
	}
	return []image.Image{img}, nil
}

type fakeFactory struct {
	seg *fakeSegmenter
	det *fakeEdgeDetector
	gen *fakeGenerator

	genErr error

	segCalls, detCalls, genCalls int32
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{seg: &fakeSegmenter{}, det: &fakeEdgeDetector{}, gen: &fakeGenerator{}}
}

func (f *fakeFactory) Segmenter() (engine.Segmenter, error) {
	atomic.AddInt32(&f.segCalls, 1)
	return f.seg, nil
}

func (f *fakeFactory) EdgeDetector(method string) (engine.EdgeDetector, error) {
	atomic.AddInt32(&f.detCalls, 1)
	return f.det, nil
}

func (f *fakeFactory) Generator(base, control string) (engine.Generator, error) {
	atomic.AddInt32(&f.genCalls, 1)
	if f.genErr != nil {
		return nil, f.genErr
	}
	return f.gen, nil
}

type fakeVectorizer struct {
	err  error
	opts []vector.Options
}

func (v *fakeVectorizer) Vectorize(ctx context.Context, img image.Image, outputPath string, opts vector.Options) (string, error) {
	v.opts = append(v.opts, opts)
	if v.err != nil {
		return "", v.err
	}
	return outputPath, os.WriteFile(outputPath, []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 4 4"/>`), 0o644)
}

// recorder collects progress and log calls.
type recorder struct {
	mu       sync.Mutex
	progress [][2]int
	messages []string
	onStep   func(current int)
}

func (r *recorder) Progress(current, total int) {
	r.mu.Lock()
	r.progress = append(r.progress, [2]int{current, total})
	fn := r.onStep
	r.mu.Unlock()
	if fn != nil {
		fn(current)
	}
}

func (r *recorder) Log(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

// steppingClock returns a clock that advances one second per call so runs
// in the same test get distinct output directories.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// photo is a motif on a light backdrop with a gradient so quantization has
// something to do.
func photo(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(200 + x%40), uint8(190 + y%50), 170, 255})
		}
	}
	for y := height / 3; y < height*2/3; y++ {
		for x := width / 3; x < width*2/3; x++ {
			img.Set(x, y, color.RGBA{uint8(120 + x), 20, uint8(40 + y), 255})
		}
	}
	return img
}
