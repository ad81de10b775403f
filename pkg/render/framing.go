package render

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
)

// Framing is the fixed thumbnail viewpoint. Angles are in degrees.
type Framing struct {
	Azimuth   float64 // Measured from +Z toward +X
	Elevation float64
	FOV       float64 // Vertical field of view
	// Fill is the fraction of the frame height the bounding sphere's
	// silhouette should cover.
	Fill float64
}

// DefaultFraming is the three-quarter view every thumbnail uses.
var DefaultFraming = Framing{
	Azimuth:   215,
	Elevation: 25,
	FOV:       45,
	Fill:      0.9,
}

// frameMargin is added to the camera distance, in units of the radius.
const frameMargin = 0.05

// depthMargin keeps the near plane in front of the sphere, in units of the
// radius.
const depthMargin = 0.02

// minRadius is the radius below which a scene is treated as a point.
const minRadius = 1e-6

// BoundingSphere returns the sphere about the bounding-box center that
// encloses every vertex referenced by a face. ok is false for a scene
// without triangles.
func BoundingSphere(s *scene.Scene) (center math3d.Vec3, radius float64, ok bool) {
	lo, hi, ok := s.Bounds()
	if !ok {
		return math3d.Vec3{}, 0, false
	}
	center = lo.Add(hi).Scale(0.5)

	var r2 float64
	for _, m := range s.Meshes {
		for _, f := range m.Faces {
			for _, vi := range f.V {
				p := m.Vertices[vi].Position.Sub(center)
				r2 = math.Max(r2, p.Dot(p))
			}
		}
	}
	return center, math.Sqrt(r2), true
}

// FrameScene derives the thumbnail camera for s using DefaultFraming.
func FrameScene(s *scene.Scene) Camera {
	return DefaultFraming.Frame(s)
}

// DefaultCamera frames a unit sphere about center. It is used for empty and
// point-like scenes.
func DefaultCamera(center math3d.Vec3) Camera {
	return DefaultFraming.Sphere(center, 1)
}

// Frame derives a camera for s. Empty and zero-radius scenes get
// DefaultCamera about their center.
func (f Framing) Frame(s *scene.Scene) Camera {
	center, radius, ok := BoundingSphere(s)
	if !ok || radius < minRadius || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return f.Sphere(center, 1)
	}
	return f.Sphere(center, radius)
}

// Sphere places the camera so a sphere of the given radius fills Fill of
// the frame height.
func (f Framing) Sphere(center math3d.Vec3, radius float64) Camera {
	if radius < minRadius {
		radius = 1
	}
	fov := math3d.Deg2Rad(f.FOV)
	fill := f.Fill
	if fill <= 0 || fill > 1 {
		fill = 1
	}

	// The sphere subtends halfAngle when its silhouette spans fill of the
	// half-height tan(fov/2).
	halfAngle := math.Atan(fill * math.Tan(fov/2))
	dist := radius/math.Sin(halfAngle) + frameMargin*radius

	near := math.Max(dist-(1+depthMargin)*radius, 0.01*radius)
	far := dist + 1.5*radius

	az := math3d.Deg2Rad(f.Azimuth)
	el := math3d.Deg2Rad(f.Elevation)
	return Camera{
		Eye:    center.Add(orbitOffset(az, el, dist)),
		Target: center,
		Up:     math3d.V3(0, 1, 0),
		FOV:    fov,
		Aspect: 1,
		Near:   near,
		Far:    far,
	}
}
