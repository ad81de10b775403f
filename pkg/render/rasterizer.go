package render

import (
	"image/color"
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
)

// AlphaCutoff discards fragments whose alpha falls below it.
const AlphaCutoff = 0.5

// degenerateArea is the screen-space area below which a triangle is skipped.
const degenerateArea = 1e-10

// Vertex represents a vertex with all attributes needed for rasterization.
type Vertex struct {
	Position math3d.Vec3 // World position
	Normal   math3d.Vec3 // Normal vector (for lighting); zero uses the face normal
	UV       math3d.Vec2 // Texture coordinates
	Color    math3d.Vec4 // Vertex color, RGBA in 0-1
}

// Triangle represents a triangle to be rasterized.
type Triangle struct {
	V [3]Vertex
}

// Rasterizer draws triangles into a framebuffer through one camera.
type Rasterizer struct {
	fb       *Framebuffer
	camera   Camera
	viewProj math3d.Mat4
	frustum  Frustum

	Lighting     Lighting
	CullingStats CullingStats // Statistics for debugging/benchmarking
}

// CullingStats tracks frustum culling performance.
type CullingStats struct {
	MeshesTested    int // Total meshes tested for culling
	MeshesCulled    int // Meshes culled (not rendered)
	MeshesDrawn     int // Meshes that passed culling
	TrianglesDrawn  int // Triangles that reached pixel iteration
	TrianglesCulled int // Triangles behind the eye or degenerate
}

// NewRasterizer creates a rasterizer drawing into fb through cam. The
// camera's aspect ratio is taken from the framebuffer.
func NewRasterizer(fb *Framebuffer, cam Camera) *Rasterizer {
	r := &Rasterizer{fb: fb, Lighting: DefaultLighting}
	r.SetCamera(cam)
	return r
}

// SetCamera replaces the camera.
func (r *Rasterizer) SetCamera(cam Camera) {
	if r.fb != nil && r.fb.Height > 0 {
		cam.Aspect = float64(r.fb.Width) / float64(r.fb.Height)
	}
	r.camera = cam
	r.viewProj = cam.ViewProjectionMatrix()
	r.frustum = NewFrustumFromMatrix(r.viewProj)
}

// Camera returns the current camera.
func (r *Rasterizer) Camera() Camera {
	return r.camera
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// DrawScene draws every mesh of s in order.
func (r *Rasterizer) DrawScene(s *scene.Scene) {
	for _, m := range s.Meshes {
		r.DrawMesh(s, m)
	}
}

// DrawMesh draws one mesh of s, skipping it when its bounds lie outside
// the view frustum.
func (r *Rasterizer) DrawMesh(s *scene.Scene, m *scene.Mesh) {
	box, ok := MeshBounds(m)
	if !ok {
		return
	}
	r.CullingStats.MeshesTested++
	if !r.frustum.IntersectAABB(box) {
		r.CullingStats.MeshesCulled++
		return
	}
	r.CullingStats.MeshesDrawn++

	white := math3d.V4(1, 1, 1, 1)
	for _, f := range m.Faces {
		var tri Triangle
		for i, vi := range f.V {
			v := m.Vertices[vi]
			tri.V[i] = Vertex{Position: v.Position, Normal: v.Normal, UV: v.UV, Color: white}
			if m.HasColor {
				tri.V[i].Color = v.Color
			}
		}
		r.DrawTriangle(tri, s.Material(f.Material))
	}
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y float64 // Screen coordinates
	Z    float64 // NDC depth
	InvW float64 // 1/w for perspective-correct interpolation
}

// DrawTriangle rasterizes one triangle with mat. Both windings are drawn.
func (r *Rasterizer) DrawTriangle(tri Triangle, mat scene.Material) {
	w, h := r.Width(), r.Height()
	if w == 0 || h == 0 {
		return
	}

	var sv [3]screenVertex
	for i := range 3 {
		clip := r.viewProj.MulVec4(math3d.V4FromV3(tri.V[i].Position, 1))
		// Any vertex at or behind the eye plane drops the triangle.
		if clip.W <= 0 {
			r.CullingStats.TrianglesCulled++
			return
		}
		inv := 1 / clip.W
		sv[i] = screenVertex{
			X:    (clip.X*inv + 1) * 0.5 * float64(w),
			Y:    (1 - clip.Y*inv) * 0.5 * float64(h), // Y flipped
			Z:    clip.Z * inv,
			InvW: inv,
		}
	}

	area := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[1].Y-sv[0].Y)*(sv[2].X-sv[0].X)
	if math.Abs(area) < degenerateArea {
		r.CullingStats.TrianglesCulled++
		return
	}

	minX := max(0, int(math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := min(w, int(math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := max(0, int(math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := min(h, int(math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))
	if minX >= maxX || minY >= maxY {
		return
	}
	r.CullingStats.TrianglesDrawn++

	faceNormal := scene.FaceNormal(tri.V[0].Position, tri.V[1].Position, tri.V[2].Position)
	eye := r.camera.Eye

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5

			bc := barycentric(
				sv[0].X, sv[0].Y,
				sv[1].X, sv[1].Y,
				sv[2].X, sv[2].Y,
				px, py,
			)
			if bc.X < 0 || bc.Y < 0 || bc.Z < 0 {
				continue
			}

			// NDC depth is affine in screen space.
			z := bc.X*sv[0].Z + bc.Y*sv[1].Z + bc.Z*sv[2].Z
			if z < -1 || z > 1 {
				continue
			}
			idx := y*w + x
			if z >= r.fb.Depth[idx] {
				continue
			}

			// Perspective-correct weights
			w0, w1, w2 := bc.X*sv[0].InvW, bc.Y*sv[1].InvW, bc.Z*sv[2].InvW
			sum := w0 + w1 + w2
			if sum <= 0 {
				continue
			}
			w0, w1, w2 = w0/sum, w1/sum, w2/sum

			c, ok := r.shade(&tri, mat, w0, w1, w2, faceNormal, eye)
			if !ok {
				continue
			}
			r.fb.Depth[idx] = z
			r.fb.Pixels[idx] = c
		}
	}
}

// shade computes the fragment color for perspective-correct weights
// (w0, w1, w2). ok is false when the fragment is cut out by alpha.
func (r *Rasterizer) shade(tri *Triangle, mat scene.Material, w0, w1, w2 float64, faceNormal, eye math3d.Vec3) (color.RGBA, bool) {
	v := &tri.V
	base := mat.BaseColor.Mul(lerp4(v[0].Color, v[1].Color, v[2].Color, w0, w1, w2))
	if mat.Texture != nil {
		uv := v[0].UV.Scale(w0).Add(v[1].UV.Scale(w1)).Add(v[2].UV.Scale(w2))
		base = base.Mul(mat.Texture.Sample(uv.X, uv.Y))
	}
	if base.W < AlphaCutoff {
		return color.RGBA{}, false
	}

	n := v[0].Normal.Scale(w0).Add(v[1].Normal.Scale(w1)).Add(v[2].Normal.Scale(w2))
	if n.IsZero(1e-12) {
		n = faceNormal
	}
	pos := v[0].Position.Scale(w0).Add(v[1].Position.Scale(w1)).Add(v[2].Position.Scale(w2))
	diffuse, specular := r.Lighting.Shade(n, eye.Sub(pos))

	return color.RGBA{
		R: toByte(base.X*diffuse + specular),
		G: toByte(base.Y*diffuse + specular),
		B: toByte(base.Z*diffuse + specular),
		A: 255,
	}, true
}

// barycentric returns the weights of (px, py) against the triangle's three
// vertices. A degenerate triangle yields all -1.
func barycentric(x0, y0, x1, y1, x2, y2, px, py float64) math3d.Vec3 {
	v0x, v0y := x1-x0, y1-y0
	v1x, v1y := x2-x0, y2-y0
	v2x, v2y := px-x0, py-y0

	d00 := v0x*v0x + v0y*v0y
	d01 := v0x*v1x + v0y*v1y
	d11 := v1x*v1x + v1y*v1y
	d20 := v2x*v0x + v2y*v0y
	d21 := v2x*v1x + v2y*v1y

	denom := d00*d11 - d01*d01
	if math.Abs(denom) < degenerateArea {
		return math3d.V3(-1, -1, -1)
	}
	inv := 1 / denom
	b1 := (d11*d20 - d01*d21) * inv
	b2 := (d00*d21 - d01*d20) * inv
	return math3d.V3(1-b1-b2, b1, b2)
}

func lerp4(a, b, c math3d.Vec4, w0, w1, w2 float64) math3d.Vec4 {
	return a.Scale(w0).Add(b.Scale(w1)).Add(c.Scale(w2))
}

func toByte(f float64) uint8 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
