// Package engine defines the processing engines the pipeline delegates to and
// the cache that keeps them alive between runs.
//
// Engines are expensive to construct (model weights, remote sessions) and are
// therefore created through a Factory, memoized in a Cache by kind and
// identity key, and reused for the lifetime of the orchestrator. The
// interfaces are deliberately narrow so tests can substitute fakes.
package engine

import (
	"context"
	"image"
)

// Kind names a family of engines in the Cache.
type Kind string

const (
	KindSegmenter    Kind = "segmenter"
	KindEdgeDetector Kind = "edge_detector"
	KindGenerator    Kind = "generator"
)

// Segmenter isolates the main object of a photograph.
type Segmenter interface {
	// ExtractMainObject returns a binary mask (255 = keep) the size of img.
	// A nil mask with a nil error means nothing dominant was found; callers
	// continue with the unmodified image.
	ExtractMainObject(ctx context.Context, img image.Image, fastMode bool) (*image.Gray, error)
}

// EdgeDetector turns an image into an edge map and cleans such maps.
type EdgeDetector interface {
	DetectEdges(ctx context.Context, img image.Image) (*image.Gray, error)
	Refine(edges *image.Gray) *image.Gray
}

// GenerateRequest carries one conditioned generation call.
type GenerateRequest struct {
	Control           image.Image
	Prompt            string
	NegativePrompt    string
	Steps             int
	GuidanceScale     float64
	ConditioningScale float64
	// Seed -1 lets the engine pick a random seed.
	Seed int64
	// Width and Height must be multiples of 8.
	Width  int
	Height int
}

// Generator produces designs conditioned on a control image.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]image.Image, error)
}
