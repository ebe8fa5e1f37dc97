package engine

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// motifImage draws filled rectangles over a cream backdrop.
func motifImage(width, height int, rects ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := color.RGBA{240, 235, 220, 255}
	fg := color.RGBA{120, 20, 30, 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, bg)
		}
	}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.Set(x, y, fg)
			}
		}
	}
	return img
}

func TestFloodSegmenter_FullModeKeepsLargest(t *testing.T) {
	small := image.Rect(2, 2, 8, 8)
	large := image.Rect(20, 20, 50, 50)
	img := motifImage(64, 64, small, large)

	mask, err := NewFloodSegmenter(0, 0).ExtractMainObject(context.Background(), img, false)
	require.NoError(t, err)
	require.NotNil(t, mask)

	assert.Equal(t, img.Bounds(), mask.Bounds())
	assert.Equal(t, uint8(255), mask.GrayAt(30, 30).Y)
	assert.Equal(t, uint8(0), mask.GrayAt(4, 4).Y)
	assert.Equal(t, uint8(0), mask.GrayAt(60, 60).Y)
}

func TestFloodSegmenter_FastModeKeepsCentre(t *testing.T) {
	centre := image.Rect(28, 28, 36, 36)
	corner := image.Rect(2, 40, 24, 62)
	img := motifImage(64, 64, centre, corner)

	mask, err := NewFloodSegmenter(0, 0).ExtractMainObject(context.Background(), img, true)
	require.NoError(t, err)
	require.NotNil(t, mask)

	assert.Equal(t, uint8(255), mask.GrayAt(32, 32).Y)
	assert.Equal(t, uint8(0), mask.GrayAt(10, 50).Y)
}

func TestFloodSegmenter_FillsHoles(t *testing.T) {
	img := motifImage(40, 40, image.Rect(10, 10, 30, 30))
	for y := 17; y < 23; y++ {
		for x := 17; x < 23; x++ {
			img.Set(x, y, color.RGBA{240, 235, 220, 255})
		}
	}

	mask, err := NewFloodSegmenter(0, 10).ExtractMainObject(context.Background(), img, false)
	require.NoError(t, err)
	require.NotNil(t, mask)
	assert.Equal(t, uint8(255), mask.GrayAt(20, 20).Y)
}

func TestFloodSegmenter_NoObject(t *testing.T) {
	seg := NewFloodSegmenter(0, 0)

	mask, err := seg.ExtractMainObject(context.Background(), motifImage(32, 32), false)
	require.NoError(t, err)
	assert.Nil(t, mask, "uniform image has no main object")

	tiny := motifImage(32, 32, image.Rect(10, 10, 13, 13))
	mask, err = seg.ExtractMainObject(context.Background(), tiny, false)
	require.NoError(t, err)
	assert.Nil(t, mask, "region below min area is ignored")

	mask, err = seg.ExtractMainObject(context.Background(), tiny, true)
	require.NoError(t, err)
	assert.Nil(t, mask, "nothing under the centre")
}

func TestFloodSegmenter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFloodSegmenter(0, 0).ExtractMainObject(ctx, motifImage(8, 8), false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFloodSegmenter_Defaults(t *testing.T) {
	seg := NewFloodSegmenter(-1, 0)
	assert.Equal(t, DefaultTolerance, seg.Tolerance)
	assert.Equal(t, DefaultMinArea, seg.MinArea)

	seg = NewFloodSegmenter(12.5, 7)
	assert.Equal(t, 12.5, seg.Tolerance)
	assert.Equal(t, 7, seg.MinArea)
}

func TestApplyMask(t *testing.T) {
	img := motifImage(4, 2, image.Rect(0, 0, 2, 2))
	mask := image.NewGray(img.Bounds())
	mask.SetGray(0, 0, color.Gray{Y: 255})
	mask.SetGray(1, 1, color.Gray{Y: 255})

	white := imaging.RGBColor{R: 255, G: 255, B: 255}
	out := ApplyMask(img, mask, white)

	assert.Equal(t, color.NRGBA{120, 20, 30, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{120, 20, 30, 255}, out.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(3, 1))
}

func TestNewEdgeDetector(t *testing.T) {
	for _, method := range []string{"", "canny", " Canny "} {
		det, err := NewEdgeDetector(method)
		require.NoError(t, err, method)
		assert.IsType(t, &CannyDetector{}, det)
	}

	for _, method := range []string{"hed", "pidinet", "sobel"} {
		_, err := NewEdgeDetector(method)
		var mde *MissingDependencyError
		require.True(t, errors.As(err, &mde), method)
	}
}

func TestCannyDetector_DetectAndRefine(t *testing.T) {
	img := motifImage(48, 48, image.Rect(12, 12, 36, 36))

	det, err := NewEdgeDetector(EdgeMethodCanny)
	require.NoError(t, err)

	edges, err := det.DetectEdges(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), edges.Bounds())

	found := false
	for y := 0; y < 48 && !found; y++ {
		for x := 0; x < 48; x++ {
			if edges.GrayAt(x, y).Y == 255 {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "square outline should produce edges")

	refined := det.Refine(edges)
	assert.Equal(t, edges.Bounds().Size(), refined.Bounds().Size())
}

func TestMissingDependencyError_Message(t *testing.T) {
	err := &MissingDependencyError{Dependency: "vtracer", Reason: "not found on PATH"}
	assert.Equal(t, "missing dependency vtracer: not found on PATH", err.Error())

	err = &MissingDependencyError{Dependency: "vtracer"}
	assert.Equal(t, "missing dependency vtracer", err.Error())
}
