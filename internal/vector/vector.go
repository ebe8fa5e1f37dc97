// Package vector exports finished carpet designs as SVG and PDF.
//
// Tracing is delegated to the vtracer executable, which must be on PATH (or
// configured explicitly). The SVG it writes is then rendered to a one-page
// PDF at the design's own size. Both steps report failures as typed errors so
// the pipeline can tell a missing tool from a failed conversion.
package vector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ironsheep/carpet-design/internal/engine"
	"github.com/ironsheep/carpet-design/internal/imaging"
)

// DefaultExecutable is looked up on PATH when no executable is configured.
const DefaultExecutable = "vtracer"

// Tracing defaults.
const (
	DefaultFilterSpeckle   = 4
	DefaultColorPrecision  = 6
	DefaultCornerThreshold = 60
)

// Options tunes the tracer.
type Options struct {
	// FilterSpeckle discards patches smaller than this many pixels.
	FilterSpeckle int
	// ColorPrecision is the number of significant bits per RGB channel.
	ColorPrecision int
	// CornerThreshold is the minimum angle, in degrees, treated as a corner.
	CornerThreshold int
}

// DefaultOptions returns the tracer defaults.
func DefaultOptions() Options {
	return Options{
		FilterSpeckle:   DefaultFilterSpeckle,
		ColorPrecision:  DefaultColorPrecision,
		CornerThreshold: DefaultCornerThreshold,
	}
}

// ProcessError reports a tracer run that exited with a non-zero status.
type ProcessError struct {
	Tool     string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with status %d\nStderr: %s\nStdout: %s", e.Tool, e.ExitCode, e.Stderr, e.Stdout)
}

// Vectorizer traces raster designs with an external executable.
type Vectorizer struct {
	path string
}

// New resolves executable (DefaultExecutable when empty) and fails with an
// engine.MissingDependencyError when it cannot be found. Nothing is spawned.
func New(executable string) (*Vectorizer, error) {
	if executable == "" {
		executable = DefaultExecutable
	}
	path, err := exec.LookPath(executable)
	if err != nil {
		return nil, &engine.MissingDependencyError{
			Dependency: executable,
			Reason:     "vector tracer not found on PATH (https://github.com/visioncortex/vtracer)",
		}
	}
	return &Vectorizer{path: path}, nil
}

// Path returns the resolved executable.
func (v *Vectorizer) Path() string {
	return v.path
}

// Vectorize traces img into an SVG at outputPath and returns outputPath.
//
// The image is staged as a temporary PNG that is removed before returning,
// whether or not tracing succeeded. A non-zero exit is reported as a
// *ProcessError carrying the tool's output.
func (v *Vectorizer) Vectorize(ctx context.Context, img image.Image, outputPath string, opts Options) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "vectorize-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary image: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := imaging.SavePNG(img, tmpPath); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, v.path, v.args(tmpPath, outputPath, opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", &ProcessError{
				Tool:     filepath.Base(v.path),
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}
		}
		return "", fmt.Errorf("failed to run %s: %w", filepath.Base(v.path), err)
	}
	return outputPath, nil
}

func (v *Vectorizer) args(input, output string, opts Options) []string {
	return []string{
		"--input", input,
		"--output", output,
		"--colormode", "color",
		"--hierarchical", "stacked",
		"--filter_speckle", strconv.Itoa(opts.FilterSpeckle),
		"--color_precision", strconv.Itoa(opts.ColorPrecision),
		"--corner_threshold", strconv.Itoa(opts.CornerThreshold),
	}
}
