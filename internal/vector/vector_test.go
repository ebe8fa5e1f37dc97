package vector

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/carpet-design/internal/engine"
)

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20" width="40" height="20">
<rect x="0" y="0" width="40" height="20" fill="#f5f0e6"/>
<rect x="10" y="5" width="20" height="10" fill="#8b1e2d"/>
</svg>`

// writeStubTracer installs a shell script that behaves like vtracer: it
// records its arguments, writes a fixed SVG to --output and exits with code.
func writeStubTracer(t *testing.T, code int) (path, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub tracer is a POSIX shell script")
	}

	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	script := `#!/bin/sh
echo "$@" > "` + argsFile + `"
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift ;;
  esac
  shift
done
if [ "` + strconv.Itoa(code) + `" != "0" ]; then
  echo "tracing went wrong" >&2
  echo "partial"
  exit ` + strconv.Itoa(code) + `
fi
cat > "$out" <<'EOF'
` + squareSVG + `
EOF
`
	path = filepath.Join(dir, "vtracer")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, argsFile
}

func designImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 30), 40, uint8(y * 30), 255})
		}
	}
	return img
}

func TestNew_MissingExecutable(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "no-such-vtracer"))
	require.Error(t, err)

	var mde *engine.MissingDependencyError
	require.True(t, errors.As(err, &mde))
	assert.Contains(t, mde.Dependency, "no-such-vtracer")
}

func TestVectorize_Success(t *testing.T) {
	tracer, argsFile := writeStubTracer(t, 0)
	v, err := New(tracer)
	require.NoError(t, err)
	assert.Equal(t, tracer, v.Path())

	out := filepath.Join(t.TempDir(), "final_design.svg")
	got, err := v.Vectorize(context.Background(), designImage(), out, Options{FilterSpeckle: 2, ColorPrecision: 7, CornerThreshold: 45})
	require.NoError(t, err)
	assert.Equal(t, out, got)

	svg, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	line := string(args)
	for _, want := range []string{
		"--colormode color", "--hierarchical stacked",
		"--filter_speckle 2", "--color_precision 7", "--corner_threshold 45",
		"--output " + out,
	} {
		assert.Contains(t, line, want)
	}

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "vectorize-"), "temporary PNG %s left behind", e.Name())
	}
}

func TestVectorize_ProcessError(t *testing.T) {
	tracer, _ := writeStubTracer(t, 3)
	v, err := New(tracer)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "final_design.svg")
	_, err = v.Vectorize(context.Background(), designImage(), out, DefaultOptions())
	require.Error(t, err)

	var pe *ProcessError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.ExitCode)
	assert.Equal(t, "vtracer", pe.Tool)
	assert.Contains(t, pe.Stderr, "tracing went wrong")
	assert.Contains(t, pe.Stdout, "partial")

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary PNG must be removed on failure")
}

func TestDefaultOptions(t *testing.T) {
	assert.Equal(t, Options{FilterSpeckle: 4, ColorPrecision: 6, CornerThreshold: 60}, DefaultOptions())
}

func TestRasterizeToPDF(t *testing.T) {
	dir := t.TempDir()
	svgPath := filepath.Join(dir, "design.svg")
	require.NoError(t, os.WriteFile(svgPath, []byte(squareSVG), 0o644))

	rendered, err := RasterizeSVG(svgPath)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(40, 20), rendered.Bounds().Size())
	r, g, b, _ := rendered.At(20, 10).RGBA()
	assert.Equal(t, []uint32{0x8b, 0x1e, 0x2d}, []uint32{r >> 8, g >> 8, b >> 8})

	pdfPath := filepath.Join(dir, "design.pdf")
	require.NoError(t, RasterizeToPDF(svgPath, pdfPath))

	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Contains(t, string(data), "/MediaBox [0 0 40.00 20.00]", "page must keep the landscape view box")
}

func TestRasterizeToPDF_ConversionError(t *testing.T) {
	dir := t.TempDir()

	err := RasterizeToPDF(filepath.Join(dir, "missing.svg"), filepath.Join(dir, "out.pdf"))
	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	empty := filepath.Join(dir, "empty.svg")
	require.NoError(t, os.WriteFile(empty, []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), 0o644))
	err = RasterizeToPDF(empty, filepath.Join(dir, "out.pdf"))
	require.True(t, errors.As(err, &ce))
}
