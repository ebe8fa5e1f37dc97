package engine

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Factory constructs engines. The orchestrator never calls it directly; every
// construction goes through a Cache so each identity is built once.
type Factory interface {
	Segmenter() (Segmenter, error)
	EdgeDetector(method string) (EdgeDetector, error)
	Generator(baseModel, controlModel string) (Generator, error)
}

// FactoryOptions holds the settings the built-in engines are created with.
type FactoryOptions struct {
	Tolerance float64
	MinArea   int

	Endpoint string
	Timeout  time.Duration

	Logger logrus.FieldLogger
}

// DefaultFactory builds the engines shipped with this module.
type DefaultFactory struct {
	opts FactoryOptions
}

// NewDefaultFactory returns a Factory for the built-in engines.
func NewDefaultFactory(opts FactoryOptions) *DefaultFactory {
	return &DefaultFactory{opts: opts}
}

func (f *DefaultFactory) Segmenter() (Segmenter, error) {
	return NewFloodSegmenter(f.opts.Tolerance, f.opts.MinArea), nil
}

func (f *DefaultFactory) EdgeDetector(method string) (EdgeDetector, error) {
	return NewEdgeDetector(method)
}

func (f *DefaultFactory) Generator(baseModel, controlModel string) (Generator, error) {
	client, err := NewDiffusionClient(DiffusionOptions{
		Endpoint:     f.opts.Endpoint,
		BaseModel:    baseModel,
		ControlModel: controlModel,
		Timeout:      f.opts.Timeout,
		Logger:       f.opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GeneratorKey is the cache identity of a generator: one instance per
// base/control model pair.
func GeneratorKey(baseModel, controlModel string) string {
	return baseModel + "|" + controlModel
}

var _ Factory = (*DefaultFactory)(nil)
