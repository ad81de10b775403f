package render

import (
	"math"
	"math/rand"
	"testing"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
)

// BenchmarkAABBIntersection benchmarks AABB vs frustum intersection test.
func BenchmarkAABBIntersection(b *testing.B) {
	proj := math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100)
	frustum := NewFrustumFromMatrix(proj)

	visibleBounds := AABB{
		Min: math3d.V3(-1, -1, -15),
		Max: math3d.V3(1, 1, -5),
	}
	b.Run("visible", func(b *testing.B) {
		for b.Loop() {
			_ = frustum.IntersectAABB(visibleBounds)
		}
	})

	// Behind the camera, rejected by the near plane.
	culledBounds := AABB{
		Min: math3d.V3(-1, -1, 5),
		Max: math3d.V3(1, 1, 15),
	}
	b.Run("culled", func(b *testing.B) {
		for b.Loop() {
			_ = frustum.IntersectAABB(culledBounds)
		}
	})
}

// BenchmarkTransformAABB benchmarks AABB transformation.
func BenchmarkTransformAABB(b *testing.B) {
	local := AABB{
		Min: math3d.V3(-1, -1, -1),
		Max: math3d.V3(1, 1, 1),
	}
	transform := math3d.Translate(math3d.V3(10, 5, -20)).Mul(math3d.RotateY(0.5)).Mul(math3d.Scale(math3d.V3(2, 2, 2)))

	for b.Loop() {
		_ = local.Transform(transform)
	}
}

// BenchmarkSceneCulling draws a scene of scattered cubes, half of them
// behind the camera.
func BenchmarkSceneCulling(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	s := scene.New()
	for i := range 100 {
		var z float64
		if i%2 == 0 {
			z = rng.Float64()*30 - 40
		} else {
			z = rng.Float64()*20 + 25
		}
		x := rng.Float64()*40 - 20
		y := rng.Float64() * 10
		s.AddMesh(cubeMesh(math3d.V3(x, y, z), 1))
	}

	cam := Camera{
		Eye:    math3d.V3(0, 10, 20),
		Target: math3d.V3(0, 0, 0),
		FOV:    math.Pi / 3,
		Near:   0.1,
		Far:    100,
	}
	fb := NewFramebuffer(160, 120)
	rast := NewRasterizer(fb, cam)

	for b.Loop() {
		fb.Clear(transparent)
		rast.DrawScene(s)
	}
}

// BenchmarkThumbnail renders a framed cube at the default thumbnail size.
func BenchmarkThumbnail(b *testing.B) {
	s := scene.New()
	s.AddMesh(cubeMesh(math3d.Vec3{}, 1))
	fb := NewFramebuffer(256, 256)
	rast := NewRasterizer(fb, FrameScene(s))

	for b.Loop() {
		fb.Clear(transparent)
		rast.DrawScene(s)
	}
}
