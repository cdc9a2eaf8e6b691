package media

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// PerceptualHash computes a 64-bit difference hash: the image is reduced to
// a 9x8 grayscale grid and each bit records whether a pixel is brighter
// than its right neighbor. Visually similar images land within a few bits
// of each other.
func PerceptualHash(img image.Image) string {
	const width, height = 9, 8

	scaled := image.NewGray(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	bit := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width-1; x++ {
			if scaled.GrayAt(x, y).Y > scaled.GrayAt(x+1, y).Y {
				hash |= 1 << uint(63-bit)
			}
			bit++
		}
	}
	return fmt.Sprintf("%016x", hash)
}

// HammingDistance counts differing bits between two hex-encoded hashes.
// Returns -1 when either hash is malformed.
func HammingDistance(a, b string) int {
	var ha, hb uint64
	if _, err := fmt.Sscanf(a, "%x", &ha); err != nil {
		return -1
	}
	if _, err := fmt.Sscanf(b, "%x", &hb); err != nil {
		return -1
	}

	diff := ha ^ hb
	count := 0
	for diff != 0 {
		count++
		diff &= diff - 1
	}
	return count
}
