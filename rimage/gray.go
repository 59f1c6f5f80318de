// Package rimage holds the grayscale frame helpers the odometry pipeline preprocesses with.
package rimage

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// SameImgSize compares images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Dx() == g2.Bounds().Dx() && g1.Bounds().Dy() == g2.Bounds().Dy()
}

// MakeGray converts any image to a freshly allocated image.Gray whose bounds start at the origin.
func MakeGray(pic image.Image) *image.Gray {
	b := pic.Bounds()
	result := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(result, result.Bounds(), pic, b.Min, draw.Src)
	return result
}

// Downsample scales src to width x height by nearest-pixel sampling. The result never aliases src.
func Downsample(src *image.Gray, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid working resolution %dx%d", width, height)
	}
	if src == nil || src.Bounds().Empty() {
		return nil, errors.New("cannot downsample an empty frame")
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// CopyGray copies src into dst and returns dst. If dst is nil or differently sized a new image is
// allocated instead.
func CopyGray(dst, src *image.Gray) *image.Gray {
	if dst == nil || !SameImgSize(dst, src) || dst.Stride != src.Stride {
		dst = image.NewGray(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst
	}
	copy(dst.Pix, src.Pix)
	return dst
}
