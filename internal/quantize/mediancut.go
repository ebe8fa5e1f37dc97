package quantize

import (
	"image"
	"sort"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// colorCount is one histogram bucket.
type colorCount struct {
	c imaging.RGBColor
	n int
}

// box is a set of histogram buckets; median cut splits boxes in two.
type box struct {
	colors []colorCount
	pixels int
}

func (b *box) channel(cc colorCount, ch int) uint8 {
	switch ch {
	case 0:
		return cc.c.R
	case 1:
		return cc.c.G
	}
	return cc.c.B
}

// widest returns the channel with the largest value range and that range.
func (b *box) widest() (ch int, span int) {
	for c := 0; c < 3; c++ {
		lo, hi := 255, 0
		for _, cc := range b.colors {
			v := int(b.channel(cc, c))
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi-lo > span {
			ch, span = c, hi-lo
		}
	}
	return ch, span
}

// split cuts the box at the pixel-weighted median of its widest channel.
// Both halves are non-empty when the box holds at least two colours.
func (b *box) split() (box, box) {
	ch, _ := b.widest()
	sort.SliceStable(b.colors, func(i, j int) bool {
		return b.channel(b.colors[i], ch) < b.channel(b.colors[j], ch)
	})

	half := b.pixels / 2
	acc, cut := 0, 1
	for i, cc := range b.colors[:len(b.colors)-1] {
		acc += cc.n
		cut = i + 1
		if acc >= half {
			break
		}
	}

	left := box{colors: b.colors[:cut]}
	right := box{colors: b.colors[cut:]}
	for _, cc := range left.colors {
		left.pixels += cc.n
	}
	right.pixels = b.pixels - left.pixels
	return left, right
}

// mean is the pixel-weighted average colour of the box, rounded.
func (b *box) mean() imaging.RGBColor {
	var r, g, bl int
	for _, cc := range b.colors {
		r += int(cc.c.R) * cc.n
		g += int(cc.c.G) * cc.n
		bl += int(cc.c.B) * cc.n
	}
	half := b.pixels / 2
	return imaging.RGBColor{
		R: uint8((r + half) / b.pixels),
		G: uint8((g + half) / b.pixels),
		B: uint8((bl + half) / b.pixels),
	}
}

// MedianCut derives a palette of exactly n colours from img.
//
// The colour histogram starts as one box. The box covering the most pixels
// among those that still hold more than one distinct colour is split at the
// median of its widest channel until n boxes exist; each box contributes its
// average colour. If the image has fewer than n distinct colours the palette
// is padded by repeating its entries in order, so its length is always n.
func MedianCut(img image.Image, n int) Palette {
	if n <= 0 {
		return Palette{}
	}

	hist := histogram(img)
	if len(hist) == 0 {
		return Palette{}
	}

	root := box{colors: hist}
	for _, cc := range hist {
		root.pixels += cc.n
	}
	boxes := []box{root}

	for len(boxes) < n {
		idx := -1
		for i := range boxes {
			if len(boxes[i].colors) < 2 {
				continue
			}
			if idx < 0 || boxes[i].pixels > boxes[idx].pixels {
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		left, right := boxes[idx].split()
		boxes[idx] = left
		boxes = append(boxes, right)
	}

	p := make(Palette, 0, n)
	for i := range boxes {
		p = append(p, boxes[i].mean())
	}
	for i := 0; len(p) < n; i++ {
		p = append(p, p[i])
	}
	return p
}

// histogram counts distinct colours in a deterministic order.
func histogram(img image.Image) []colorCount {
	b := img.Bounds()
	counts := make(map[imaging.RGBColor]int)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			counts[imaging.RGBColorOf(img.At(x, y))]++
		}
	}

	out := make([]colorCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, colorCount{c: c, n: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].c, out[j].c
		if a.R != b.R {
			return a.R < b.R
		}
		if a.G != b.G {
			return a.G < b.G
		}
		return a.B < b.B
	})
	return out
}
