// Package render frames a scene and rasterizes it in software into an RGBA
// framebuffer with a depth buffer.
package render

import (
	"image"
	"image/color"
)

// farDepth is the NDC depth of the far plane; an empty depth buffer holds it.
const farDepth = 1.0

// Framebuffer holds color and depth for one render. Both are row-major.
type Framebuffer struct {
	Width  int
	Height int
	Pixels []color.RGBA
	Depth  []float64 // NDC z per pixel, farDepth when empty
}

// NewFramebuffer creates a transparent framebuffer with a cleared depth
// buffer.
func NewFramebuffer(width, height int) *Framebuffer {
	width, height = max(width, 0), max(height, 0)
	fb := &Framebuffer{
		Width:  width,
		Height: height,
		Pixels: make([]color.RGBA, width*height),
		Depth:  make([]float64, width*height),
	}
	fb.ClearDepth()
	return fb
}

// Clear fills the color buffer with c and resets the depth buffer.
func (fb *Framebuffer) Clear(c color.RGBA) {
	for i := range fb.Pixels {
		fb.Pixels[i] = c
	}
	fb.ClearDepth()
}

// ClearDepth resets every depth to the far plane.
func (fb *Framebuffer) ClearDepth() {
	// Use copy-doubling for faster clearing
	n := len(fb.Depth)
	if n == 0 {
		return
	}
	fb.Depth[0] = farDepth
	for i := 1; i < n; i *= 2 {
		copy(fb.Depth[i:], fb.Depth[:i])
	}
}

// SetPixel sets a pixel at (x, y) to the given color.
// Bounds checking is performed.
func (fb *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// GetPixel returns the color at (x, y).
// Returns transparent black if out of bounds.
func (fb *Framebuffer) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return color.RGBA{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// DepthAt returns the stored depth at (x, y), or farDepth out of bounds.
func (fb *Framebuffer) DepthAt(x, y int) float64 {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return farDepth
	}
	return fb.Depth[y*fb.Width+x]
}

// ToImage copies the color buffer into a standard Go image.RGBA.
func (fb *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for i, c := range fb.Pixels {
		img.Pix[4*i], img.Pix[4*i+1], img.Pix[4*i+2], img.Pix[4*i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
