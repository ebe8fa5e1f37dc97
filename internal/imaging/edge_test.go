package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestCanny_Dimensions(t *testing.T) {
	img := createEdgeTestImage(100, 80)

	edges := Canny(img, DefaultEdgeLow, DefaultEdgeHigh)
	if edges.Bounds() != image.Rect(0, 0, 100, 80) {
		t.Errorf("bounds: got %v, want (0,0)-(100,80)", edges.Bounds())
	}
}

func TestCanny_OffsetBounds(t *testing.T) {
	src := createEdgeTestImage(40, 40)
	sub := src.SubImage(image.Rect(10, 10, 30, 30))

	edges := Canny(sub, DefaultEdgeLow, DefaultEdgeHigh)
	if edges.Bounds() != image.Rect(0, 0, 20, 20) {
		t.Errorf("bounds: got %v, want (0,0)-(20,20)", edges.Bounds())
	}
}

func TestCanny_UniformImage(t *testing.T) {
	img := createInMemoryImage(50, 50, color.RGBA{128, 128, 128, 255})

	edges := Canny(img, DefaultEdgeLow, DefaultEdgeHigh)
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			if edges.GrayAt(x, y).Y != 0 {
				t.Fatalf("uniform image should have no edges, found one at (%d,%d)", x, y)
			}
		}
	}
}

func TestCanny_StrongEdge(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}

	edges := Canny(img, DefaultEdgeLow, DefaultEdgeHigh)

	edgeFound := false
	for x := 47; x <= 52; x++ {
		if edges.GrayAt(x, 50).Y == 255 {
			edgeFound = true
			break
		}
	}
	if !edgeFound {
		t.Error("strong vertical edge was not detected")
	}
	if edges.GrayAt(10, 50).Y != 0 || edges.GrayAt(90, 50).Y != 0 {
		t.Error("flat regions either side of the edge should stay black")
	}
}

func TestCanny_BinaryOutput(t *testing.T) {
	edges := Canny(createEdgeTestImage(60, 60), 10, 50)
	for _, v := range edges.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("edge map must be binary, found %d", v)
		}
	}
}

func TestCanny_TinyImages(t *testing.T) {
	for _, size := range []int{1, 2, 5} {
		edges := Canny(createInMemoryImage(size, size, color.White), DefaultEdgeLow, DefaultEdgeHigh)
		if edges.Bounds().Dx() != size {
			t.Errorf("size %d: got width %d", size, edges.Bounds().Dx())
		}
	}
	if edges := Canny(image.NewRGBA(image.Rect(0, 0, 0, 0)), 50, 150); !edges.Bounds().Empty() {
		t.Error("empty input should give an empty edge map")
	}
}

func TestEdgeDetect_Encoded(t *testing.T) {
	result, err := EdgeDetect(createEdgeTestImage(64, 48), DefaultEdgeLow, DefaultEdgeHigh, true)
	if err != nil {
		t.Fatalf("EdgeDetect failed: %v", err)
	}
	if result.Width != 64 || result.Height != 48 {
		t.Errorf("dimensions: got %dx%d, want 64x48", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	decoded, err := DecodePNGBase64(result.ImageBase64)
	if err != nil {
		t.Fatalf("result is not a decodable PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 64 {
		t.Errorf("decoded width: got %d", decoded.Bounds().Dx())
	}
}

func TestGaussianBlur(t *testing.T) {
	uniform := newPlane(10, 10)
	for i := range uniform.v {
		uniform.v[i] = 0.5
	}

	blurred := gaussianBlur(uniform)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if d := blurred.at(x, y) - 0.5; d > 1e-9 || d < -1e-9 {
				t.Fatalf("blurred(%d,%d): got %.6f, want 0.5", x, y, blurred.at(x, y))
			}
		}
	}

	spot := newPlane(11, 11)
	spot.set(5, 5, 1)
	blurred = gaussianBlur(spot)
	if blurred.at(5, 5) >= 1 {
		t.Error("bright spot should be reduced after blur")
	}
	if blurred.at(4, 5) == 0 || blurred.at(6, 5) == 0 || blurred.at(5, 4) == 0 || blurred.at(5, 6) == 0 {
		t.Error("neighbours should receive some brightness from blur")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}

	for _, tt := range tests {
		if got := clamp(tt.val, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d): got %d, want %d", tt.val, tt.lo, tt.hi, got, tt.want)
		}
	}
}

// createEdgeTestImage creates a black rectangle on a white background
func createEdgeTestImage(width, height int) *image.RGBA {
	img := createInMemoryImage(width, height, color.White)
	for y := height / 4; y < 3*height/4; y++ {
		for x := width / 4; x < 3*width/4; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}
