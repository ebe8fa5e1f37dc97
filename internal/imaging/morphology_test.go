package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestRefineEdges_RemovesSpeckle(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 20, 20))
	edges.SetGray(10, 10, color.Gray{Y: 255})

	refined := RefineEdges(edges)
	if refined.GrayAt(10, 10).Y != 0 {
		t.Error("isolated pixel should be removed by the opening")
	}
}

func TestRefineEdges_BridgesGap(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 30, 24))
	for y := 10; y <= 12; y++ {
		for x := 2; x < 28; x++ {
			if x == 15 {
				continue
			}
			edges.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	refined := RefineEdges(edges)
	if refined.GrayAt(15, 11).Y != 255 {
		t.Error("one-pixel gap in a thick stroke should be closed")
	}
	if refined.GrayAt(20, 11).Y != 255 {
		t.Error("stroke body should survive")
	}
	if refined.GrayAt(15, 2).Y != 0 {
		t.Error("background should stay black")
	}
}

func TestRefineEdges_Binary(t *testing.T) {
	refined := RefineEdges(Canny(createEdgeTestImage(40, 40), DefaultEdgeLow, DefaultEdgeHigh))

	if refined.Bounds() != image.Rect(0, 0, 40, 40) {
		t.Errorf("bounds: got %v", refined.Bounds())
	}
	for _, v := range refined.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("refined map must be binary, found %d", v)
		}
	}
}
