// Package keypoints detects intensity discontinuities in small grayscale frames and pairs them
// across consecutive frames.
package keypoints

import (
	"image"

	"github.com/golang/geo/r2"
)

type (
	// KeyPoint is an image.Point that contains coordinates of a kp.
	KeyPoint image.Point
	// KeyPoints is a slice of image.Point that contains several kps, in detection order.
	KeyPoints []image.Point
)

// CrossIdx is the four-connected neighborhood: up, down, left, right.
var CrossIdx = []image.Point{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

// DetectionConfig holds the parameters of DetectFeatures.
type DetectionConfig struct {
	Threshold   int `json:"feature_threshold"`
	MaxFeatures int `json:"max_features"`
}

// IsDiscontinuity reports whether the pixel at p differs from any of its four neighbors by more
// than threshold. p must not be on the image border.
func IsDiscontinuity(img *image.Gray, p image.Point, threshold int) bool {
	center := int(img.GrayAt(p.X, p.Y).Y)
	for _, offset := range CrossIdx {
		neighbor := int(img.GrayAt(p.X+offset.X, p.Y+offset.Y).Y)
		diff := center - neighbor
		if diff < 0 {
			diff = -diff
		}
		if diff > threshold {
			return true
		}
	}
	return false
}

// DetectFeatures scans every pixel but the one-pixel border in raster order and collects the
// discontinuities. Collection stops at maxFeatures, so a busy frame yields its top-most features
// rather than its strongest.
func DetectFeatures(img *image.Gray, threshold, maxFeatures int) KeyPoints {
	kps := make(KeyPoints, 0, maxFeatures)
	if maxFeatures <= 0 {
		return kps
	}
	b := img.Bounds()
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			p := image.Point{x, y}
			if !IsDiscontinuity(img, p, threshold) {
				continue
			}
			kps = append(kps, p)
			if len(kps) == maxFeatures {
				return kps
			}
		}
	}
	return kps
}

// ToR2 converts the keypoints to r2 points.
func (kps KeyPoints) ToR2() []r2.Point {
	pts := make([]r2.Point, len(kps))
	for i, kp := range kps {
		pts[i] = r2.Point{X: float64(kp.X), Y: float64(kp.Y)}
	}
	return pts
}

// Clone returns a copy that shares no memory with kps.
func (kps KeyPoints) Clone() KeyPoints {
	return append(KeyPoints(nil), kps...)
}
