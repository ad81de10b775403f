package render

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// Camera is a right-handed perspective camera looking from Eye at Target.
// Cameras are derived from the scene by FrameScene, never user-supplied.
type Camera struct {
	Eye    math3d.Vec3
	Target math3d.Vec3
	Up     math3d.Vec3

	// Projection parameters
	FOV    float64 // Vertical field of view in radians
	Aspect float64 // Width / Height; zero means square
	Near   float64 // Near clipping plane
	Far    float64 // Far clipping plane
}

// ViewMatrix returns the world-to-camera matrix.
func (c Camera) ViewMatrix() math3d.Mat4 {
	up := c.Up
	if up.IsZero(1e-12) {
		up = math3d.V3(0, 1, 0)
	}
	return math3d.LookAt(c.Eye, c.Target, up)
}

// ProjectionMatrix returns the OpenGL-style projection, mapping the visible
// depth range to NDC z in [-1, 1].
func (c Camera) ProjectionMatrix() math3d.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return math3d.Perspective(c.FOV, aspect, c.Near, c.Far)
}

// ViewProjectionMatrix returns projection * view.
func (c Camera) ViewProjectionMatrix() math3d.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// Forward returns the unit view direction.
func (c Camera) Forward() math3d.Vec3 {
	return c.Target.Sub(c.Eye).Normalize()
}

// Distance returns the eye-to-target distance.
func (c Camera) Distance() float64 {
	return c.Eye.Distance(c.Target)
}

// Frustum returns the camera's view frustum.
func (c Camera) Frustum() Frustum {
	return NewFrustumFromMatrix(c.ViewProjectionMatrix())
}

// Orbit returns the camera moved around its target by the given azimuth and
// elevation deltas in radians. Elevation stays short of the poles.
func (c Camera) Orbit(dAzimuth, dElevation float64) Camera {
	off := c.Eye.Sub(c.Target)
	dist := off.Len()
	if dist == 0 {
		return c
	}
	az := math.Atan2(off.X, off.Z) + dAzimuth
	el := math.Asin(math.Max(-1, math.Min(1, off.Y/dist))) + dElevation

	const maxElevation = math.Pi/2 - 0.01
	el = math.Max(-maxElevation, math.Min(maxElevation, el))

	c.Eye = c.Target.Add(orbitOffset(az, el, dist))
	return c
}

// orbitOffset places a point dist away at azimuth az (measured from +Z
// toward +X) and elevation el.
func orbitOffset(az, el, dist float64) math3d.Vec3 {
	return math3d.V3(
		dist*math.Cos(el)*math.Sin(az),
		dist*math.Sin(el),
		dist*math.Cos(el)*math.Cos(az),
	)
}

// WorldToScreen transforms a world point to screen coordinates.
// Returns (screenX, screenY, depth, visible).
func (c Camera) WorldToScreen(worldPos math3d.Vec3, screenWidth, screenHeight int) (x, y, depth float64, visible bool) {
	clip := c.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(worldPos, 1))

	// Behind the camera
	if clip.W <= 0 {
		return 0, 0, 0, false
	}

	ndc := clip.Vec3().Scale(1 / clip.W)
	if ndc.X < -1 || ndc.X > 1 || ndc.Y < -1 || ndc.Y > 1 || ndc.Z < -1 || ndc.Z > 1 {
		return 0, 0, 0, false
	}

	x = (ndc.X + 1) * 0.5 * float64(screenWidth)
	y = (1 - ndc.Y) * 0.5 * float64(screenHeight) // Y is flipped
	return x, y, ndc.Z, true
}
