package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// refineRadius gives bild's square search window a 3x3 footprint (2R+1).
const refineRadius = 1

// RefineEdges cleans a binary edge map for use as a generation control image.
//
// The map is thresholded at 128, closed (dilate then erode) to bridge one-knot
// gaps in motif outlines, then opened (erode then dilate) to drop isolated
// speckle. The result is binary: every pixel is 0 or 255.
func RefineEdges(edges image.Image) *image.Gray {
	binary := segment.Threshold(edges, 128)

	closed := effect.Erode(effect.Dilate(binary, refineRadius), refineRadius)
	opened := effect.Dilate(effect.Erode(closed, refineRadius), refineRadius)

	return segment.Threshold(opened, 128)
}
