package formats

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
)

// BlockScale converts block-model pixel units into world units: 16 pixels
// make one block.
const BlockScale = 1.0 / 16

// zeroAngle is the per-axis threshold below which a rotation is ignored.
const zeroAngle = 0.001

type faceDir int

const (
	faceNorth faceDir = iota
	faceSouth
	faceEast
	faceWest
	faceUp
	faceDown
)

var faceNames = [6]string{"north", "south", "east", "west", "up", "down"}

func (d faceDir) String() string { return faceNames[d] }

// cubeCorners returns the eight corners of the box spanned by from and to:
// from, +X, +X+Y, +Y, +Z, +X+Z, to, +Y+Z.
func cubeCorners(from, to math3d.Vec3) [8]math3d.Vec3 {
	return [8]math3d.Vec3{
		{X: from.X, Y: from.Y, Z: from.Z},
		{X: to.X, Y: from.Y, Z: from.Z},
		{X: to.X, Y: to.Y, Z: from.Z},
		{X: from.X, Y: to.Y, Z: from.Z},
		{X: from.X, Y: from.Y, Z: to.Z},
		{X: to.X, Y: from.Y, Z: to.Z},
		{X: to.X, Y: to.Y, Z: to.Z},
		{X: from.X, Y: to.Y, Z: to.Z},
	}
}

// quadTable maps each faceDir to four corner indices. Corner order matches
// the UV corner order of uvQuad.
type quadTable [6][4]int

var (
	// vsFaces is the corner order Vintage Story shapes expect.
	vsFaces = quadTable{
		faceNorth: {0, 3, 2, 1},
		faceSouth: {5, 6, 7, 4},
		faceEast:  {1, 2, 6, 5},
		faceWest:  {4, 7, 3, 0},
		faceUp:    {3, 7, 6, 2},
		faceDown:  {0, 1, 5, 4},
	}

	// blockFaces is shared by Blockbench, Bedrock and Java models.
	blockFaces = quadTable{
		faceNorth: {2, 3, 0, 1},
		faceSouth: {7, 6, 5, 4},
		faceEast:  {6, 2, 1, 5},
		faceWest:  {3, 7, 4, 0},
		faceUp:    {3, 2, 6, 7},
		faceDown:  {4, 5, 1, 0},
	}
)

// uvQuad holds the UVs for the four corners of a face.
type uvQuad [4]math3d.Vec2

var defaultUVs = uvQuad{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}

// uvRect builds corners (u1,v1) (u2,v1) (u2,v2) (u1,v2).
func uvRect(u1, v1, u2, v2 float64) uvQuad {
	return uvQuad{{X: u1, Y: v1}, {X: u2, Y: v1}, {X: u2, Y: v2}, {X: u1, Y: v2}}
}

// pixelRect normalizes a pixel-space rectangle by the texture size.
func pixelRect(u1, v1, u2, v2, w, h float64) uvQuad {
	if w <= 0 {
		w = 16
	}
	if h <= 0 {
		h = 16
	}
	return uvRect(u1/w, v1/h, u2/w, v2/h)
}

// rotated shifts the corners right by round(deg/90) steps.
func (q uvQuad) rotated(deg float64) uvQuad {
	steps := int(math.Round(deg/90)) % 4
	if steps < 0 {
		steps += 4
	}
	var out uvQuad
	for i := range q {
		out[(i+steps)%4] = q[i]
	}
	return out
}

// rotation is one pivot rotation in model units.
type rotation struct {
	Origin math3d.Vec3
	Angles math3d.Vec3 // degrees
	Order  math3d.EulerOrder
}

func (r rotation) isZero() bool {
	return math.Abs(r.Angles.X) < zeroAngle && math.Abs(r.Angles.Y) < zeroAngle && math.Abs(r.Angles.Z) < zeroAngle
}

// matrix returns the rotation about Origin scaled into world units.
func (r rotation) matrix(scale float64) math3d.Mat4 {
	return math3d.RotateAround(r.Origin.Scale(scale), r.Angles, r.Order)
}

// axisAngles maps a single-axis rotation to per-axis angles. Unknown axes
// rotate about Y.
func axisAngles(axis string, angle float64) math3d.Vec3 {
	switch axis {
	case "x", "X":
		return math3d.V3(angle, 0, 0)
	case "z", "Z":
		return math3d.V3(0, 0, angle)
	}
	return math3d.V3(0, angle, 0)
}

// applyRotations rotates corners by each non-zero rotation in order.
func applyRotations(corners *[8]math3d.Vec3, scale float64, rots ...rotation) {
	for _, r := range rots {
		if r.isZero() {
			continue
		}
		m := r.matrix(scale)
		for i := range corners {
			corners[i] = m.MulVec3(corners[i])
		}
	}
}

// cubeBuilder accumulates box faces into one mesh and hands out materials
// keyed by texture.
type cubeBuilder struct {
	scene     *scene.Scene
	mesh      *scene.Mesh
	color     math3d.Vec4
	materials map[string]int
}

func newCubeBuilder(s *scene.Scene, name string, color math3d.Vec4) *cubeBuilder {
	return &cubeBuilder{
		scene:     s,
		mesh:      scene.NewMesh(name),
		color:     color,
		materials: make(map[string]int),
	}
}

// material returns the material index for key, creating it with create on
// first use.
func (b *cubeBuilder) material(key string, create func() scene.Material) int {
	if idx, ok := b.materials[key]; ok {
		return idx
	}
	m := create()
	if m.BaseColor == (math3d.Vec4{}) {
		m.BaseColor = b.color
	}
	idx := b.scene.AddMaterial(m)
	b.materials[key] = idx
	return idx
}

// solid returns the untextured material in the builder's color.
func (b *cubeBuilder) solid() int {
	return b.material("", func() scene.Material {
		return scene.Material{Name: "solid"}
	})
}

// addQuad emits one face as triangles (0,1,2) and (0,2,3).
func (b *cubeBuilder) addQuad(corners *[8]math3d.Vec3, idx [4]int, uvs uvQuad, material int) {
	p := [4]math3d.Vec3{corners[idx[0]], corners[idx[1]], corners[idx[2]], corners[idx[3]]}
	n := scene.FaceNormal(p[0], p[1], p[2])
	if n.IsZero(1e-12) {
		n = scene.FaceNormal(p[0], p[2], p[3])
	}
	vert := func(i int) scene.Vertex {
		return scene.Vertex{Position: p[i], Normal: n, UV: uvs[i], Color: math3d.V4(1, 1, 1, 1)}
	}
	b.mesh.AddTriangle(vert(0), vert(1), vert(2), material)
	b.mesh.AddTriangle(vert(0), vert(2), vert(3), material)
}

// finish adds the mesh to the scene and turns it to face the camera.
func (b *cubeBuilder) finish() {
	b.scene.AddMesh(b.mesh)
	yawAboutCenter(b.scene)
}

// yawAboutCenter rotates the scene 180 degrees about the vertical axis
// through its bounding-box center. Block-model front faces point toward -Z,
// away from the thumbnail camera.
func yawAboutCenter(s *scene.Scene) {
	lo, hi, ok := s.Bounds()
	if !ok {
		return
	}
	c := lo.Add(hi).Scale(0.5)
	m := math3d.Translate(c).Mul(math3d.RotateY(math.Pi)).Mul(math3d.Translate(c.Scale(-1)))
	s.Transform(m)
}
