package pipeline

import (
	"bytes"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/ironsheep/carpet-design/internal/geometry"
	"github.com/ironsheep/carpet-design/internal/quantize"
)

// Artifact keys in Result.Artifacts.
const (
	ArtifactKnotResolution    = "knot_resolution"
	ArtifactBackgroundRemoved = "background_removed"
	ArtifactEdges             = "edges"
	ArtifactGenerated         = "ai_generated"
	ArtifactQuantized         = "quantized"
	ArtifactPaletteSwatch     = "palette_swatch"
	ArtifactColorInfo         = "color_info"
	ArtifactFourWay           = "four_way_symmetry"
	ArtifactMedallion         = "medallion_layout"
	ArtifactFinalPNG          = "final_png"
	ArtifactFinalSVG          = "final_svg"
	ArtifactFinalPDF          = "final_pdf"
	ArtifactSpecsJSON         = "specs_json"
	ArtifactSpecsText         = "specs_txt"
	ArtifactKnotChart         = "knot_chart"
	ArtifactPlan              = "plan"
	ArtifactReport            = "report"
)

// ReportName is the processing report written at finalization.
const ReportName = "run_report.json"

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StatusExecuted StageStatus = "executed"
	StatusSkipped  StageStatus = "skipped"
	StatusDegraded StageStatus = "degraded"
	StatusFailed   StageStatus = "failed"
)

// StageReport records what happened in one stage.
type StageReport struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Step     int           `json:"step,omitempty"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is what a run produced. It only grows while the run proceeds and is
// returned, partially filled, when the run is cancelled or fails.
type Result struct {
	RunID     string    `json:"run_id"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	OutputDir string    `json:"output_dir"`

	// Original is the caller's input image, untouched.
	Original image.Image `json:"-"`

	Resolution  geometry.Resolution `json:"resolution"`
	CurrentStep int                 `json:"current_step"`
	TotalSteps  int                 `json:"total_steps"`

	Palette   quantize.Palette  `json:"palette,omitempty"`
	Artifacts map[string]string `json:"artifacts"`
	Stages    []StageReport     `json:"stages"`

	// Error is set when the run was cancelled or failed.
	Error string `json:"error,omitempty"`
}

// Artifact returns the path stored under key.
func (r *Result) Artifact(key string) (string, bool) {
	p, ok := r.Artifacts[key]
	return p, ok
}

// StageStatus returns the recorded status of stage, if it ran at all.
func (r *Result) StageStatus(stage Stage) (StageStatus, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Status, true
		}
	}
	return "", false
}

func (r *Result) addArtifact(key, path string) {
	r.Artifacts[key] = path
}

func (r *Result) record(rep StageReport) {
	r.Stages = append(r.Stages, rep)
}

// writeReport stores the result as run_report.json in the output directory.
func (r *Result) writeReport() (string, error) {
	path := filepath.Join(r.OutputDir, ReportName)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return "", errors.Wrap(err, "encode run report")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrap(err, "write run report")
	}
	return path, nil
}
