// Package segment separates a carpet motif from its photographic backdrop.
//
// It works on a Grid of foreground flags: Foreground marks pixels that differ
// from the estimated backdrop colour, Components groups them into 8-connected
// regions, and the selection helpers pick the region that becomes the mask.
package segment

import (
	"image"
	"image/color"
	"sort"
)

// Grid is a row-major foreground map.
type Grid struct {
	Width, Height int
	On            []bool
}

// NewGrid allocates an all-background grid.
func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, On: make([]bool, width*height)}
}

// At reports whether (x, y) is foreground. Out-of-range points are background.
func (g *Grid) At(x, y int) bool {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return false
	}
	return g.On[y*g.Width+x]
}

// Set marks (x, y).
func (g *Grid) Set(x, y int, on bool) {
	g.On[y*g.Width+x] = on
}

// Count returns the number of foreground cells.
func (g *Grid) Count() int {
	n := 0
	for _, on := range g.On {
		if on {
			n++
		}
	}
	return n
}

// Mask renders the grid as a binary mask: 255 foreground, 0 background.
func (g *Grid) Mask() *image.Gray {
	m := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for i, on := range g.On {
		if on {
			m.Pix[i] = 255
		}
	}
	return m
}

// GridFromMask is the inverse of Mask: any non-zero pixel is foreground.
func GridFromMask(m *image.Gray) *Grid {
	b := m.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			g.Set(x, y, m.GrayAt(b.Min.X+x, b.Min.Y+y) != color.Gray{})
		}
	}
	return g
}

// Component is one 8-connected foreground region.
type Component struct {
	Pixels []image.Point
	Bounds image.Rectangle
}

// Area is the pixel count of the component.
func (c Component) Area() int {
	return len(c.Pixels)
}

// Contains reports whether p belongs to the component.
func (c Component) Contains(p image.Point) bool {
	if !p.In(c.Bounds) {
		return false
	}
	for _, q := range c.Pixels {
		if q == p {
			return true
		}
	}
	return false
}

// Grid renders the component alone on a width x height grid.
func (c Component) Grid(width, height int) *Grid {
	g := NewGrid(width, height)
	for _, p := range c.Pixels {
		g.Set(p.X, p.Y, true)
	}
	return g
}

// Components groups the foreground of g into 8-connected regions, largest
// first. Ties keep scan order (top-to-bottom, left-to-right by first pixel).
func Components(g *Grid) []Component {
	visited := make([]bool, len(g.On))
	var comps []Component

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.On[y*g.Width+x] && !visited[y*g.Width+x] {
				comps = append(comps, floodFill(g, visited, x, y))
			}
		}
	}

	sort.SliceStable(comps, func(i, j int) bool {
		return comps[i].Area() > comps[j].Area()
	})
	return comps
}

// floodFill collects the component containing (startX, startY) using an
// explicit stack, marking cells in visited.
func floodFill(g *Grid, visited []bool, startX, startY int) Component {
	comp := Component{Bounds: image.Rect(startX, startY, startX+1, startY+1)}
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !g.At(p.X, p.Y) || visited[p.Y*g.Width+p.X] {
			continue
		}
		visited[p.Y*g.Width+p.X] = true
		comp.Pixels = append(comp.Pixels, p)
		comp.Bounds = comp.Bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 {
					stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
				}
			}
		}
	}
	return comp
}

// Largest returns the biggest component if it has at least minArea pixels.
// comps must be ordered as Components returns them.
func Largest(comps []Component, minArea int) (Component, bool) {
	if len(comps) == 0 || comps[0].Area() < minArea {
		return Component{}, false
	}
	return comps[0], true
}

// Containing returns the component that covers p.
func Containing(comps []Component, p image.Point) (Component, bool) {
	for _, c := range comps {
		if c.Contains(p) {
			return c, true
		}
	}
	return Component{}, false
}

// FillHoles marks as foreground every background cell that cannot reach the
// grid border through background cells (4-connected). Motif interiors that
// happen to match the backdrop colour stay inside the mask.
func FillHoles(g *Grid) *Grid {
	outside := make([]bool, len(g.On))
	var stack []image.Point
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
			return
		}
		i := y*g.Width + x
		if g.On[i] || outside[i] {
			return
		}
		outside[i] = true
		stack = append(stack, image.Point{X: x, Y: y})
	}

	for x := 0; x < g.Width; x++ {
		push(x, 0)
		push(x, g.Height-1)
	}
	for y := 0; y < g.Height; y++ {
		push(0, y)
		push(g.Width-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X+1, p.Y)
		push(p.X-1, p.Y)
		push(p.X, p.Y+1)
		push(p.X, p.Y-1)
	}

	filled := NewGrid(g.Width, g.Height)
	for i := range g.On {
		filled.On[i] = !outside[i]
	}
	return filled
}
