package render

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample shrinks a supersampled render to size×size. image.RGBA is
// premultiplied, so the CatmullRom filter does not darken transparent edges.
func Downsample(img *image.RGBA, size int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}
	return scale(img, size, draw.CatmullRom)
}

// Resample rescales img to exactly size×size, choosing CatmullRom when
// shrinking and bilinear when enlarging.
func Resample(img *image.RGBA, size int) *image.RGBA {
	b := img.Bounds()
	switch {
	case b.Dx() == size && b.Dy() == size:
		return img
	case b.Dx() > size:
		return scale(img, size, draw.CatmullRom)
	default:
		return scale(img, size, draw.BiLinear)
	}
}

func scale(img *image.RGBA, size int, s draw.Scaler) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if img.Bounds().Empty() || size <= 0 {
		return dst
	}
	s.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
