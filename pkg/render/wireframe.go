package render

import (
	"image/color"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
)

// Wireframe draws unshaded line overlays, used by the terminal preview.
type Wireframe struct {
	camera Camera
	fb     *Framebuffer
}

// NewWireframe creates a line renderer drawing into fb through cam.
func NewWireframe(fb *Framebuffer, cam Camera) *Wireframe {
	if fb.Height > 0 {
		cam.Aspect = float64(fb.Width) / float64(fb.Height)
	}
	return &Wireframe{camera: cam, fb: fb}
}

// DrawLine3D draws a world-space line. Lines with both ends off screen are
// skipped.
func (w *Wireframe) DrawLine3D(p1, p2 math3d.Vec3, c color.RGBA) {
	x1, y1, _, vis1 := w.camera.WorldToScreen(p1, w.fb.Width, w.fb.Height)
	x2, y2, _, vis2 := w.camera.WorldToScreen(p2, w.fb.Width, w.fb.Height)
	if !vis1 || !vis2 {
		return
	}
	w.fb.DrawLine(int(x1), int(y1), int(x2), int(y2), c)
}

// DrawBox draws the twelve edges of box.
func (w *Wireframe) DrawBox(box AABB, c color.RGBA) {
	lo, hi := box.Min, box.Max
	corners := [8]math3d.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
	}
	edges := [12][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	for _, e := range edges {
		w.DrawLine3D(corners[e[0]], corners[e[1]], c)
	}
}

// DrawScene draws every triangle edge of s.
func (w *Wireframe) DrawScene(s *scene.Scene, c color.RGBA) {
	for _, m := range s.Meshes {
		for _, f := range m.Faces {
			a, b, d := m.Vertices[f.V[0]].Position, m.Vertices[f.V[1]].Position, m.Vertices[f.V[2]].Position
			w.DrawLine3D(a, b, c)
			w.DrawLine3D(b, d, c)
			w.DrawLine3D(d, a, c)
		}
	}
}

// DrawLine draws a line from (x0, y0) to (x1, y1) using Bresenham's algorithm.
func (fb *Framebuffer) DrawLine(x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
