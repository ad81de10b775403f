// Package texture decodes and samples texture images and resolves the
// texture references found in model files.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// WrapMode determines how texture coordinates outside [0,1] are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota // Tile the texture
	WrapClamp                  // Clamp to edge
)

// FilterMode determines how texture sampling is performed.
type FilterMode int

const (
	FilterNearest  FilterMode = iota // Nearest-neighbor, keeps pixel art crisp
	FilterBilinear                   // Bilinear interpolation
)

// Texture is an RGBA8 image stored row-major, four bytes per texel.
// UV (0,0) is the top-left texel.
type Texture struct {
	Width  int
	Height int
	Pix    []uint8
	WrapU  WrapMode
	WrapV  WrapMode
	Filter FilterMode
}

// New creates a transparent texture with the given dimensions.
func New(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}
}

// imageFormat is a decoder selected by its leading magic bytes. '?' in
// magic matches any byte.
type imageFormat struct {
	name   string
	magic  string
	decode func(io.Reader) (image.Image, error)
}

// imageFormats are tried in order. TGA has no magic, so it registers with
// the image package under an empty one and would claim every input; it is
// only used when nothing here matches.
var imageFormats = []imageFormat{
	{"png", "\x89PNG\r\n\x1a\n", png.Decode},
	{"jpeg", "\xff\xd8", jpeg.Decode},
	{"bmp", "BM", bmp.Decode},
	{"tiff", "II*\x00", tiff.Decode},
	{"tiff", "MM\x00*", tiff.Decode},
	{"webp", "RIFF????WEBP", webp.Decode},
}

func matchMagic(data []byte, magic string) bool {
	if len(data) < len(magic) {
		return false
	}
	for i := range len(magic) {
		if magic[i] != '?' && magic[i] != data[i] {
			return false
		}
	}
	return true
}

// Decode decodes PNG, JPEG, BMP, TIFF, WebP or TGA bytes into a texture.
func Decode(data []byte) (*Texture, error) {
	name, decode := "tga", tga.Decode
	for _, f := range imageFormats {
		if matchMagic(data, f.magic) {
			name, decode = f.name, f.decode
			break
		}
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", name, err)
	}
	return FromImage(img), nil
}

// FromImage converts any image to a texture with straight (non-premultiplied)
// alpha.
func FromImage(img image.Image) *Texture {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return &Texture{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    nrgba.Pix,
	}
}

// Image returns the texture as an image sharing the pixel buffer.
func (t *Texture) Image() *image.NRGBA {
	return &image.NRGBA{Pix: t.Pix, Stride: 4 * t.Width, Rect: image.Rect(0, 0, t.Width, t.Height)}
}

// SetPixel sets a texel.
func (t *Texture) SetPixel(x, y int, c color.NRGBA) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	i := (y*t.Width + x) * 4
	t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3] = c.R, c.G, c.B, c.A
}

// GetPixel returns the texel at (x, y) with bounds checking.
func (t *Texture) GetPixel(x, y int) color.NRGBA {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return color.NRGBA{}
	}
	i := (y*t.Width + x) * 4
	return color.NRGBA{t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3]}
}

// Sample returns the color at (u, v) as RGBA in 0..1. Coordinates outside
// [0,1] wrap according to the wrap modes. An empty texture samples white.
func (t *Texture) Sample(u, v float64) math3d.Vec4 {
	if t.Width <= 0 || t.Height <= 0 {
		return math3d.V4(1, 1, 1, 1)
	}

	u = wrapCoord(u, t.WrapU)
	v = wrapCoord(v, t.WrapV)

	var c [4]float64
	switch t.Filter {
	case FilterBilinear:
		c = t.sampleBilinear(u, v)
	default:
		c = t.sampleNearest(u, v)
	}
	return math3d.V4(c[0]/255, c[1]/255, c[2]/255, c[3]/255)
}

// wrapCoord applies the wrap mode to a coordinate.
func wrapCoord(coord float64, mode WrapMode) float64 {
	if math.IsNaN(coord) || math.IsInf(coord, 0) {
		return 0
	}
	switch mode {
	case WrapClamp:
		return math.Max(0, math.Min(1, coord))
	default:
		return coord - math.Floor(coord)
	}
}

func (t *Texture) texel(x, y int) [4]float64 {
	i := (y*t.Width + x) * 4
	return [4]float64{float64(t.Pix[i]), float64(t.Pix[i+1]), float64(t.Pix[i+2]), float64(t.Pix[i+3])}
}

// sampleNearest returns the nearest texel.
func (t *Texture) sampleNearest(u, v float64) [4]float64 {
	x := min(int(u*float64(t.Width)), t.Width-1)
	y := min(int(v*float64(t.Height)), t.Height-1)
	return t.texel(x, y)
}

// sampleBilinear blends the four nearest texels.
func (t *Texture) sampleBilinear(u, v float64) [4]float64 {
	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrapPixelCoord(x0+1, t.Width, t.WrapU)
	y1 := wrapPixelCoord(y0+1, t.Height, t.WrapV)
	x0 = wrapPixelCoord(x0, t.Width, t.WrapU)
	y0 = wrapPixelCoord(y0, t.Height, t.WrapV)

	c00, c10 := t.texel(x0, y0), t.texel(x1, y0)
	c01, c11 := t.texel(x0, y1), t.texel(x1, y1)

	var out [4]float64
	for i := range 4 {
		top := c00[i] + (c10[i]-c00[i])*tx
		bot := c01[i] + (c11[i]-c01[i])*tx
		out[i] = top + (bot-top)*ty
	}
	return out
}

// wrapPixelCoord wraps a texel coordinate.
func wrapPixelCoord(x, size int, mode WrapMode) int {
	switch mode {
	case WrapClamp:
		return max(0, min(x, size-1))
	default:
		x %= size
		if x < 0 {
			x += size
		}
		return x
	}
}
