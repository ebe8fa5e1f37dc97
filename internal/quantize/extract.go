package quantize

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// Extraction defaults.
const (
	DefaultMaxSamples = 20000
	extractSeed       = 42
	kmeansRestarts    = 10
	kmeansMaxIter     = 300
	kmeansTolerance   = 1e-4
)

type point [3]float64

func dist2(a, b point) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

// kmeansRun is the outcome of one restart.
type kmeansRun struct {
	centroids []point
	inertia   float64
}

// Extract suggests an n-colour palette for img.
//
// Up to maxSamples pixels are drawn uniformly without replacement (all pixels
// when the image is smaller) and clustered with k-means++ seeded k-means.
// Ten restarts run concurrently; the one with the lowest inertia wins, ties
// going to the earliest restart. All randomness derives from a fixed seed, so
// identical input always yields the identical palette. Centroid channels are
// truncated to 8 bits.
//
// maxSamples <= 0 selects DefaultMaxSamples. ctx cancels outstanding restarts.
func Extract(ctx context.Context, img image.Image, n, maxSamples int) (Palette, error) {
	if n < 1 {
		return nil, fmt.Errorf("n_colors must be positive, got %d", n)
	}
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}

	samples := samplePixels(img, maxSamples)
	if len(samples) < n {
		return nil, fmt.Errorf("need at least %d pixels to extract %d colors, got %d", n, n, len(samples))
	}

	runs := make([]kmeansRun, kmeansRestarts)
	errGrp, gCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < kmeansRestarts; i++ {
		restart := i
		errGrp.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(extractSeed + int64(restart)))
			runs[restart] = kmeans(samples, n, rng)
			return nil
		})
	}
	if err := errGrp.Wait(); err != nil {
		return nil, fmt.Errorf("palette extraction interrupted: %w", err)
	}

	best := 0
	for i := 1; i < len(runs); i++ {
		if runs[i].inertia < runs[best].inertia {
			best = i
		}
	}

	p := make(Palette, n)
	for i, c := range runs[best].centroids {
		p[i] = imaging.RGBColor{R: truncate8(c[0]), G: truncate8(c[1]), B: truncate8(c[2])}
	}
	return p, nil
}

// samplePixels returns every pixel in scan order, or maxSamples of them
// chosen by a seeded permutation.
func samplePixels(img image.Image, maxSamples int) []point {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h

	at := func(i int) point {
		c := imaging.RGBColorOf(img.At(b.Min.X+i%w, b.Min.Y+i/w))
		return point{float64(c.R), float64(c.G), float64(c.B)}
	}

	if total <= maxSamples {
		out := make([]point, total)
		for i := range out {
			out[i] = at(i)
		}
		return out
	}

	idx := sampleIndices(total, maxSamples, rand.New(rand.NewSource(extractSeed)))
	out := make([]point, maxSamples)
	for i, p := range idx {
		out[i] = at(p)
	}
	return out
}

// sampleIndices picks m distinct indices below n with Floyd's algorithm, so
// memory grows with m rather than with the pixel count. The result is sorted
// to walk the image in row order.
func sampleIndices(n, m int, rng *rand.Rand) []int {
	chosen := make(map[int]struct{}, m)
	idx := make([]int, 0, m)
	for j := n - m; j < n; j++ {
		t := rng.Intn(j + 1)
		if _, dup := chosen[t]; dup {
			t = j
		}
		chosen[t] = struct{}{}
		idx = append(idx, t)
	}
	sort.Ints(idx)
	return idx
}

// kmeans runs Lloyd's algorithm from a k-means++ initialisation.
func kmeans(samples []point, k int, rng *rand.Rand) kmeansRun {
	centroids := initPlusPlus(samples, k, rng)
	labels := make([]int, len(samples))

	var inertia float64
	for iter := 0; iter < kmeansMaxIter; iter++ {
		inertia = assign(samples, centroids, labels)

		sums := make([]point, k)
		counts := make([]int, k)
		for i, s := range samples {
			l := labels[i]
			sums[l][0] += s[0]
			sums[l][1] += s[1]
			sums[l][2] += s[2]
			counts[l]++
		}

		shift := 0.0
		for j := range centroids {
			if counts[j] == 0 {
				// empty cluster keeps its centroid
				continue
			}
			next := point{sums[j][0] / float64(counts[j]), sums[j][1] / float64(counts[j]), sums[j][2] / float64(counts[j])}
			shift += dist2(centroids[j], next)
			centroids[j] = next
		}
		if shift <= kmeansTolerance {
			inertia = assign(samples, centroids, labels)
			break
		}
	}
	return kmeansRun{centroids: centroids, inertia: inertia}
}

// assign labels every sample with its nearest centroid and returns the
// total squared distance.
func assign(samples, centroids []point, labels []int) float64 {
	var inertia float64
	for i, s := range samples {
		best, bestDist := 0, math.Inf(1)
		for j, c := range centroids {
			if d := dist2(s, c); d < bestDist {
				best, bestDist = j, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// initPlusPlus picks k starting centroids, each new one drawn with
// probability proportional to its squared distance from the chosen set.
func initPlusPlus(samples []point, k int, rng *rand.Rand) []point {
	centroids := make([]point, 0, k)
	centroids = append(centroids, samples[rng.Intn(len(samples))])

	d := make([]float64, len(samples))
	for i, s := range samples {
		d[i] = dist2(s, centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, v := range d {
			total += v
		}

		next := rng.Intn(len(samples))
		if total > 0 {
			target := rng.Float64() * total
			for i, v := range d {
				target -= v
				if target < 0 {
					next = i
					break
				}
			}
		}

		c := samples[next]
		centroids = append(centroids, c)
		for i, s := range samples {
			if v := dist2(s, c); v < d[i] {
				d[i] = v
			}
		}
	}
	return centroids
}

func truncate8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
