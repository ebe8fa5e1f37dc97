package symmetry

import (
	"image"
	"image/color"
	"testing"

	carpetimg "github.com/ironsheep/carpet-design/internal/imaging"
)

// createNoiseImage fills an image with a deterministic non-symmetric pattern
func createNoiseImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8((x*y + 3*x) % 256), 255})
		}
	}
	return img
}

func rgbAt(img image.Image, x, y int) carpetimg.RGBColor {
	return carpetimg.RGBColorOf(img.At(x, y))
}

func TestFourWayMirror_Quadrants(t *testing.T) {
	src := createNoiseImage(20, 12)
	out := FourWayMirror(src)

	if out.Bounds() != image.Rect(0, 0, 20, 12) {
		t.Fatalf("bounds: got %v", out.Bounds())
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			want := rgbAt(src, x, y)
			if got := rgbAt(out, x, y); got != want {
				t.Fatalf("top-left (%d,%d): got %v, want %v", x, y, got, want)
			}
			if got := rgbAt(out, 19-x, y); got != want {
				t.Fatalf("top-right mirror of (%d,%d): got %v, want %v", x, y, got, want)
			}
			if got := rgbAt(out, x, 11-y); got != want {
				t.Fatalf("bottom-left mirror of (%d,%d): got %v, want %v", x, y, got, want)
			}
			if got := rgbAt(out, 19-x, 11-y); got != want {
				t.Fatalf("bottom-right mirror of (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestFourWayMirror_Idempotent(t *testing.T) {
	for _, size := range []image.Point{{16, 10}, {17, 11}, {2, 2}} {
		once := FourWayMirror(createNoiseImage(size.X, size.Y))
		twice := FourWayMirror(once)

		for i := range once.Pix {
			if once.Pix[i] != twice.Pix[i] {
				t.Fatalf("%v: mirroring a mirrored image changed byte %d", size, i)
			}
		}
	}
}

func TestFourWayMirror_OddSeam(t *testing.T) {
	src := createNoiseImage(7, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			src.Set(x, y, color.White)
		}
	}
	out := FourWayMirror(src)

	if out.Bounds().Dx() != 7 || out.Bounds().Dy() != 5 {
		t.Fatalf("size must be preserved, got %v", out.Bounds())
	}
	if got := rgbAt(out, 6, 2); got != (carpetimg.RGBColor{}) {
		t.Errorf("uncovered last column should be black, got %v", got)
	}
	if got := rgbAt(out, 3, 4); got != (carpetimg.RGBColor{}) {
		t.Errorf("uncovered last row should be black, got %v", got)
	}
	if got := rgbAt(out, 5, 3); got != (carpetimg.RGBColor{R: 255, G: 255, B: 255}) {
		t.Errorf("covered pixel should be white, got %v", got)
	}
	if out.NRGBAAt(6, 4).A != 255 {
		t.Error("output must be opaque")
	}
}

func TestFourWayMirror_Degenerate(t *testing.T) {
	out := FourWayMirror(createNoiseImage(1, 9))
	if out.Bounds().Dx() != 1 || out.Bounds().Dy() != 9 {
		t.Errorf("bounds: got %v", out.Bounds())
	}
}

func TestMirrorHorizontal(t *testing.T) {
	src := createNoiseImage(10, 4)
	out := MirrorHorizontal(src)

	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			if rgbAt(out, x, y) != rgbAt(src, x, y) || rgbAt(out, 9-x, y) != rgbAt(src, x, y) {
				t.Fatalf("row %d column %d is not mirrored", y, x)
			}
		}
	}
}

func TestMedallion_Layout(t *testing.T) {
	center := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for i := 0; i < len(center.Pix); i += 4 {
		center.Pix[i], center.Pix[i+1], center.Pix[i+2], center.Pix[i+3] = 139, 0, 0, 255
	}

	out, err := Medallion(center, 200, 120, DefaultBackground)
	if err != nil {
		t.Fatalf("Medallion failed: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 200, 120) {
		t.Fatalf("bounds: got %v", out.Bounds())
	}

	// side = 60, placed at (70,30)
	if got := rgbAt(out, 0, 0); got != DefaultBackground {
		t.Errorf("corner should be background, got %v", got)
	}
	if got := rgbAt(out, 69, 60); got != DefaultBackground {
		t.Errorf("left of medallion should be background, got %v", got)
	}
	if got := rgbAt(out, 100, 60); got != (carpetimg.RGBColor{R: 139, G: 0, B: 0}) {
		t.Errorf("centre should be medallion, got %v", got)
	}
	if got := rgbAt(out, 129, 89); got != (carpetimg.RGBColor{R: 139, G: 0, B: 0}) {
		t.Errorf("medallion bottom-right should be medallion, got %v", got)
	}
	if got := rgbAt(out, 130, 90); got != DefaultBackground {
		t.Errorf("just past medallion should be background, got %v", got)
	}
}

func TestMedallion_AlphaMask(t *testing.T) {
	center := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			center.SetNRGBA(x, y, color.NRGBA{0, 0, 200, 255})
		}
	}

	out, err := Medallion(center, 80, 80, DefaultBackground)
	if err != nil {
		t.Fatalf("Medallion failed: %v", err)
	}

	// medallion occupies (20,20)-(60,60); its transparent border shows the field
	if got := rgbAt(out, 22, 22); got != DefaultBackground {
		t.Errorf("transparent medallion pixel should show background, got %v", got)
	}
	if got := rgbAt(out, 40, 40); got != (carpetimg.RGBColor{R: 0, G: 0, B: 200}) {
		t.Errorf("opaque medallion pixel should be kept, got %v", got)
	}
	if out.NRGBAAt(22, 22).A != 255 {
		t.Error("result must be opaque")
	}
}

func TestMedallion_InvalidCanvas(t *testing.T) {
	if _, err := Medallion(createNoiseImage(4, 4), 0, 10, DefaultBackground); err == nil {
		t.Error("zero width canvas should be rejected")
	}
}
