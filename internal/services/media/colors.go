package media

import (
	"fmt"
	"image"
	"sort"

	"golang.org/x/image/draw"
)

// sampleSize is the frame edge the image is reduced to before clustering.
// 64x64 keeps k-means under a millisecond while preserving the palette.
const sampleSize = 64

type point3 struct {
	r, g, b float64
}

// DominantColors extracts up to k dominant colors as #rrggbb strings,
// ordered by cluster population. Deterministic: centroids are seeded evenly
// across the sampled pixels, not randomly.
func DominantColors(img image.Image, k int) []string {
	if k <= 0 {
		k = 5
	}

	pixels := samplePixels(img)
	if len(pixels) == 0 {
		return nil
	}
	if k > len(pixels) {
		k = len(pixels)
	}

	centroids := make([]point3, k)
	for i := range centroids {
		centroids[i] = pixels[i*len(pixels)/k]
	}

	assignments := make([]int, len(pixels))
	for iter := 0; iter < 10; iter++ {
		changed := false
		for i, p := range pixels {
			best, bestDist := 0, distSq(p, centroids[0])
			for c := 1; c < k; c++ {
				if d := distSq(p, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([]point3, k)
		for i, p := range pixels {
			c := assignments[i]
			counts[c]++
			sums[c].r += p.r
			sums[c].g += p.g
			sums[c].b += p.b
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			centroids[c] = point3{
				r: sums[c].r / float64(counts[c]),
				g: sums[c].g / float64(counts[c]),
				b: sums[c].b / float64(counts[c]),
			}
		}
		if !changed {
			break
		}
	}

	counts := make([]int, k)
	for _, c := range assignments {
		counts[c]++
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	colors := make([]string, 0, k)
	for _, c := range order {
		if counts[c] == 0 {
			continue
		}
		colors = append(colors, fmt.Sprintf("#%02x%02x%02x",
			uint8(centroids[c].r), uint8(centroids[c].g), uint8(centroids[c].b)))
	}
	return colors
}

// samplePixels downscales the image and flattens it to RGB points.
func samplePixels(img image.Image) []point3 {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil
	}

	scaled := image.NewRGBA(image.Rect(0, 0, sampleSize, sampleSize))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)

	pixels := make([]point3, 0, sampleSize*sampleSize)
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			r, g, b, _ := scaled.At(x, y).RGBA()
			pixels = append(pixels, point3{
				r: float64(r >> 8),
				g: float64(g >> 8),
				b: float64(b >> 8),
			})
		}
	}
	return pixels
}

func distSq(a, b point3) float64 {
	dr, dg, db := a.r-b.r, a.g-b.g, a.b-b.b
	return dr*dr + dg*dg + db*db
}
