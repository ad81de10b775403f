// Package scene holds the canonical, format-independent model that every
// parser produces and the rasterizer consumes.
package scene

import (
	"fmt"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/texture"
)

// DefaultMaterial is the face material index meaning "no material".
// The rasterizer draws it with DefaultBaseColor.
const DefaultMaterial = -1

// DefaultBaseColor is the light gray used for faces without a material.
var DefaultBaseColor = math3d.V4(0.85, 0.85, 0.85, 1)

// Scene owns an ordered set of meshes and the materials they reference.
type Scene struct {
	Meshes    []*Mesh
	Materials []Material
	Warnings  []Warning
}

// Mesh is a triangle list. Only triangles are ever stored.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Faces    []Face
	// HasColor reports whether Vertex.Color carries per-vertex color.
	HasColor bool
}

// Vertex holds all vertex attributes.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Color    math3d.Vec4
}

// Face is one triangle with vertex indices and a material reference.
type Face struct {
	V        [3]int // Indices into Mesh.Vertices
	Material int    // Index into Scene.Materials, or DefaultMaterial
}

// Material is a base color with an optional texture.
type Material struct {
	Name       string
	BaseColor  math3d.Vec4 // RGBA in 0-1 range
	TextureRef string      // what the source file asked for, resolved or not
	Texture    *texture.Texture
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{}
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

// AddMesh appends m when it holds at least one face.
func (s *Scene) AddMesh(m *Mesh) {
	if m == nil || len(m.Faces) == 0 {
		return
	}
	s.Meshes = append(s.Meshes, m)
}

// AddMaterial appends a material and returns its index.
func (s *Scene) AddMaterial(m Material) int {
	s.Materials = append(s.Materials, m)
	return len(s.Materials) - 1
}

// Material returns the material for index i, falling back to the default
// material for DefaultMaterial or any out-of-range index.
func (s *Scene) Material(i int) Material {
	if i < 0 || i >= len(s.Materials) {
		return Material{Name: "default", BaseColor: DefaultBaseColor}
	}
	return s.Materials[i]
}

// TriangleCount returns the number of triangles across all meshes.
func (s *Scene) TriangleCount() int {
	n := 0
	for _, m := range s.Meshes {
		n += len(m.Faces)
	}
	return n
}

// VertexCount returns the number of vertices across all meshes.
func (s *Scene) VertexCount() int {
	n := 0
	for _, m := range s.Meshes {
		n += len(m.Vertices)
	}
	return n
}

// Bounds returns the axis-aligned box over every vertex referenced by a
// face. ok is false for a scene without triangles.
func (s *Scene) Bounds() (lo, hi math3d.Vec3, ok bool) {
	for _, m := range s.Meshes {
		for _, f := range m.Faces {
			for _, vi := range f.V {
				p := m.Vertices[vi].Position
				if !ok {
					lo, hi, ok = p, p, true
					continue
				}
				lo = lo.Min(p)
				hi = hi.Max(p)
			}
		}
	}
	return lo, hi, ok
}

// Transform applies mat to every vertex position and carries normals
// through its inverse-transpose.
func (s *Scene) Transform(mat math3d.Mat4) {
	nm := mat.NormalMatrix()
	for _, m := range s.Meshes {
		for i := range m.Vertices {
			v := &m.Vertices[i]
			v.Position = mat.MulVec3(v.Position)
			v.Normal = nm.MulVec3Dir(v.Normal).Normalize()
		}
	}
}

// Validate checks the index invariants: every vertex index is in range and
// every material index is valid or DefaultMaterial.
func (s *Scene) Validate() error {
	for mi, m := range s.Meshes {
		for fi, f := range m.Faces {
			for _, vi := range f.V {
				if vi < 0 || vi >= len(m.Vertices) {
					return fmt.Errorf("mesh %d face %d: vertex index %d out of range (%d vertices)", mi, fi, vi, len(m.Vertices))
				}
			}
			if f.Material != DefaultMaterial && (f.Material < 0 || f.Material >= len(s.Materials)) {
				return fmt.Errorf("mesh %d face %d: material index %d out of range (%d materials)", mi, fi, f.Material, len(s.Materials))
			}
		}
	}
	return nil
}

// AddTriangle appends one triangle built from three vertices.
func (m *Mesh) AddTriangle(a, b, c Vertex, material int) {
	base := len(m.Vertices)
	m.Vertices = append(m.Vertices, a, b, c)
	m.Faces = append(m.Faces, Face{V: [3]int{base, base + 1, base + 2}, Material: material})
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// CalculateNormals assigns each face's normal to its vertices. Vertices
// shared between faces end up with the last face's normal, which is fine for
// the box-shaped geometry that relies on it.
func (m *Mesh) CalculateNormals() {
	for _, f := range m.Faces {
		n := FaceNormal(m.Vertices[f.V[0]].Position, m.Vertices[f.V[1]].Position, m.Vertices[f.V[2]].Position)
		for _, vi := range f.V {
			m.Vertices[vi].Normal = n
		}
	}
}

// CalculateSmoothNormals computes area-weighted averaged normals, for meshes
// that came without them.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Vec3{}
	}

	for _, f := range m.Faces {
		v0 := m.Vertices[f.V[0]].Position
		v1 := m.Vertices[f.V[1]].Position
		v2 := m.Vertices[f.V[2]].Position

		// Unnormalized, so larger faces weigh more.
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		for _, vi := range f.V {
			m.Vertices[vi].Normal = m.Vertices[vi].Normal.Add(n)
		}
	}

	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// HasNormals reports whether any vertex carries a non-zero normal.
func (m *Mesh) HasNormals() bool {
	for _, v := range m.Vertices {
		if !v.Normal.IsZero(1e-6) {
			return true
		}
	}
	return false
}

// FaceNormal returns the unit normal of the counter-clockwise triangle a, b, c.
func FaceNormal(a, b, c math3d.Vec3) math3d.Vec3 {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}
