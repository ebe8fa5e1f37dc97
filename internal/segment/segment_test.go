package segment

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// createBlobImage draws filled rectangles of fg on a bg canvas
func createBlobImage(width, height int, bg, fg color.Color, rects ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
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

func TestBorderColor(t *testing.T) {
	img := createBlobImage(20, 20, color.RGBA{240, 240, 240, 255}, color.Black, image.Rect(5, 5, 15, 15))

	if got := BorderColor(img); got != (imaging.RGBColor{R: 240, G: 240, B: 240}) {
		t.Errorf("border color: got %v", got.Slice())
	}
	if got := BorderColor(image.NewRGBA(image.Rect(0, 0, 1, 1))); got != (imaging.RGBColor{}) {
		t.Errorf("single pixel border: got %v", got.Slice())
	}
}

func TestForeground(t *testing.T) {
	img := createBlobImage(10, 10, color.White, color.RGBA{250, 250, 250, 255}, image.Rect(0, 0, 2, 2))
	img.Set(5, 5, color.Black)

	g := Foreground(img, imaging.RGBColor{R: 255, G: 255, B: 255}, 30)
	if !g.At(5, 5) {
		t.Error("black pixel should be foreground")
	}
	if g.At(0, 0) {
		t.Error("near-white pixel should stay background")
	}
	if g.Count() != 1 {
		t.Errorf("count: got %d, want 1", g.Count())
	}
}

func TestComponents_LargestFirst(t *testing.T) {
	g := NewGrid(30, 30)
	for y := 2; y < 5; y++ {
		for x := 2; x < 5; x++ {
			g.Set(x, y, true) // 9 cells
		}
	}
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			g.Set(x, y, true) // 100 cells
		}
	}
	g.Set(25, 25, true)
	g.Set(26, 26, true) // diagonal neighbour joins under 8-connectivity

	comps := Components(g)
	if len(comps) != 3 {
		t.Fatalf("components: got %d, want 3", len(comps))
	}
	if comps[0].Area() != 100 || comps[1].Area() != 9 || comps[2].Area() != 2 {
		t.Errorf("areas: got %d, %d, %d", comps[0].Area(), comps[1].Area(), comps[2].Area())
	}
	if comps[0].Bounds != image.Rect(10, 10, 20, 20) {
		t.Errorf("bounds: got %v", comps[0].Bounds)
	}
}

func TestComponents_Empty(t *testing.T) {
	if comps := Components(NewGrid(5, 5)); len(comps) != 0 {
		t.Errorf("empty grid should have no components, got %d", len(comps))
	}
}

func TestLargest(t *testing.T) {
	g := NewGrid(20, 20)
	for x := 0; x < 12; x++ {
		g.Set(x, 3, true)
	}
	comps := Components(g)

	if _, ok := Largest(comps, 100); ok {
		t.Error("component below min area should not be selected")
	}
	c, ok := Largest(comps, 10)
	if !ok || c.Area() != 12 {
		t.Errorf("got %d cells, ok=%v", c.Area(), ok)
	}
	if _, ok := Largest(nil, 1); ok {
		t.Error("no components should give no selection")
	}
}

func TestContaining(t *testing.T) {
	g := NewGrid(10, 10)
	g.Set(1, 1, true)
	g.Set(5, 5, true)
	g.Set(5, 6, true)
	comps := Components(g)

	c, ok := Containing(comps, image.Pt(5, 6))
	if !ok || c.Area() != 2 {
		t.Errorf("got area %d, ok=%v", c.Area(), ok)
	}
	if _, ok := Containing(comps, image.Pt(8, 8)); ok {
		t.Error("background point should not be contained")
	}
}

func TestFillHoles(t *testing.T) {
	g := NewGrid(9, 9)
	for i := 2; i <= 6; i++ {
		g.Set(i, 2, true)
		g.Set(i, 6, true)
		g.Set(2, i, true)
		g.Set(6, i, true)
	}

	filled := FillHoles(g)
	if !filled.At(4, 4) {
		t.Error("enclosed hole should be filled")
	}
	if filled.At(0, 0) || filled.At(8, 4) {
		t.Error("outside background must stay background")
	}
	if filled.Count() != 25 {
		t.Errorf("count: got %d, want 25", filled.Count())
	}
}

func TestMaskRoundTrip(t *testing.T) {
	g := NewGrid(4, 3)
	g.Set(1, 2, true)
	g.Set(3, 0, true)

	m := g.Mask()
	if m.GrayAt(1, 2).Y != 255 || m.GrayAt(0, 0).Y != 0 {
		t.Error("mask values wrong")
	}

	back := GridFromMask(m)
	for i := range g.On {
		if back.On[i] != g.On[i] {
			t.Fatalf("cell %d differs after round trip", i)
		}
	}
}

func TestComponentGrid(t *testing.T) {
	g := NewGrid(6, 6)
	g.Set(0, 0, true)
	g.Set(4, 4, true)
	g.Set(4, 5, true)
	comps := Components(g)

	only := comps[0].Grid(6, 6)
	if only.Count() != 2 || only.At(0, 0) {
		t.Errorf("component grid should hold only the largest region, count=%d", only.Count())
	}
}
