package pipeline

import (
	"os"
	"path/filepath"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageGeometry         Stage = "geometry"
	StageRemoveBackground Stage = "remove_background"
	StageDetectEdges      Stage = "detect_edges"
	StageGenerateDesign   Stage = "generate_design"
	StageQuantizeColors   Stage = "quantize_colors"
	StageApplySymmetry    Stage = "apply_symmetry"
	StageVectorize        Stage = "vectorize"
	StageFinalize         Stage = "finalize"
)

// stageOrder is the fixed execution order.
var stageOrder = []Stage{
	StageGeometry,
	StageRemoveBackground,
	StageDetectEdges,
	StageGenerateDesign,
	StageQuantizeColors,
	StageApplySymmetry,
	StageVectorize,
	StageFinalize,
}

// PlanName is the DOT rendering of a run's stage graph.
const PlanName = "pipeline.dot"

// Plan is the directed graph of the stages a run will execute, in order.
// Disabled stages are kept as unconnected vertices so the rendering shows
// the whole pipeline. A requested symmetry stage stays in the plan for full
// designs so its skip is recorded.
type Plan struct {
	graph   graph.Graph[Stage, Stage]
	enabled map[Stage]bool
	order   []Stage
}

func rank(s Stage) int {
	for i, o := range stageOrder {
		if o == s {
			return i
		}
	}
	return len(stageOrder)
}

// NewPlan builds the stage graph for cfg.
func NewPlan(cfg RunConfig) (*Plan, error) {
	enabled := map[Stage]bool{
		StageGeometry:         true,
		StageRemoveBackground: cfg.RemoveBackground,
		StageDetectEdges:      cfg.DetectEdges,
		StageGenerateDesign:   cfg.GenerateDesign,
		StageQuantizeColors:   cfg.QuantizeColors,
		StageApplySymmetry:    cfg.ApplySymmetry,
		StageVectorize:        cfg.Vectorize,
		StageFinalize:         true,
	}

	g := graph.New(func(s Stage) Stage { return s }, graph.Directed(), graph.Acyclic(), graph.PreventCycles())
	for _, s := range stageOrder {
		attrs := []func(*graph.VertexProperties){graph.VertexAttribute("shape", "box")}
		if !enabled[s] {
			attrs = append(attrs, graph.VertexAttribute("style", "dashed"), graph.VertexAttribute("fontcolor", "gray"))
		}
		if err := g.AddVertex(s, attrs...); err != nil {
			return nil, errors.Wrapf(err, "unable to add stage %s", s)
		}
	}

	var prev Stage
	for _, s := range stageOrder {
		if !enabled[s] {
			continue
		}
		if prev != "" {
			if err := g.AddEdge(prev, s); err != nil {
				return nil, errors.Wrapf(err, "unable to link %s to %s", prev, s)
			}
		}
		prev = s
	}

	// Tile control models condition on the segmented image directly.
	if cfg.GenerateDesign && cfg.RemoveBackground && cfg.DetectEdges && cfg.Generation.TileControl() {
		if err := g.AddEdge(StageRemoveBackground, StageGenerateDesign, graph.EdgeAttribute("style", "dashed"), graph.EdgeAttribute("label", "control")); err != nil {
			return nil, errors.Wrap(err, "unable to add control edge")
		}
	}

	sorted, err := graph.StableTopologicalSort(g, func(a, b Stage) bool { return rank(a) < rank(b) })
	if err != nil {
		return nil, errors.Wrap(err, "unable to order stages")
	}
	order := make([]Stage, 0, len(sorted))
	for _, s := range sorted {
		if enabled[s] {
			order = append(order, s)
		}
	}

	return &Plan{graph: g, enabled: enabled, order: order}, nil
}

// Stages returns the enabled stages in execution order, geometry first and
// finalize last.
func (p *Plan) Stages() []Stage {
	return append([]Stage(nil), p.order...)
}

// includes reports whether s is part of the run.
func (p *Plan) includes(s Stage) bool {
	return p.enabled[s]
}

// statusColors fills vertices by outcome.
var statusColors = map[StageStatus][3]uint8{
	StatusExecuted: {0x8f, 0xd1, 0x8f},
	StatusSkipped:  {0xd9, 0xd9, 0xd9},
	StatusDegraded: {0xf5, 0xc2, 0x6b},
	StatusFailed:   {0xe0, 0x6c, 0x6c},
}

// Mark colours the vertex of a stage by its outcome.
func (p *Plan) Mark(s Stage, status StageStatus) error {
	rgb, ok := statusColors[status]
	if !ok {
		return errors.Errorf("unknown stage status %q", status)
	}
	c, err := colors.RGB(rgb[0], rgb[1], rgb[2])
	if err != nil {
		return errors.Wrap(err, "unable to get colour")
	}

	_, props, err := p.graph.VertexWithProperties(s)
	if err != nil {
		return errors.Wrapf(err, "unable to get stage %s", s)
	}
	props.Attributes["style"] = "filled"
	props.Attributes["fillcolor"] = c.ToHEX().String()
	props.Attributes["xlabel"] = string(status)
	return nil
}

// WriteDOT renders the plan to dir/pipeline.dot.
func (p *Plan) WriteDOT(dir string) (string, error) {
	path := filepath.Join(dir, PlanName)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to create file %s", path)
	}
	defer f.Close()

	if err := draw.DOT(p.graph, f, draw.GraphAttribute("rankdir", "LR")); err != nil {
		return "", errors.Wrapf(err, "unable to create dot file %s", path)
	}
	return path, nil
}
