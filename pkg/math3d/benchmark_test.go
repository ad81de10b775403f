package math3d

import (
	"math"
	"testing"
)

// cubeCorners is a 16px block in model units.
var cubeCorners = [8]Vec3{
	V3(0, 0, 0), V3(16, 0, 0), V3(16, 16, 0), V3(0, 16, 0),
	V3(0, 0, 16), V3(16, 0, 16), V3(16, 16, 16), V3(0, 16, 16),
}

func BenchmarkRotateEuler(b *testing.B) {
	deg := V3(22.5, 45, -30)
	for _, order := range []EulerOrder{EulerXYZ, EulerZYX} {
		b.Run(order.String(), func(b *testing.B) {
			for b.Loop() {
				_ = RotateEuler(deg, order)
			}
		})
	}
}

// BenchmarkBoneChain rotates one cube's corners through a three-bone
// pivot chain, as the block-model parsers do per element.
func BenchmarkBoneChain(b *testing.B) {
	chain := []Mat4{
		RotateAround(V3(8, 0, 8), V3(0, 45, 0), EulerZYX),
		RotateAround(V3(8, 12, 8), V3(-22.5, 0, 0), EulerZYX),
		RotateAround(V3(0, 24, 0), V3(0, 0, 10), EulerZYX),
	}
	var out [8]Vec3

	for b.Loop() {
		m := Identity()
		for _, r := range chain {
			m = r.Mul(m)
		}
		for i, c := range cubeCorners {
			out[i] = m.MulVec3(c)
		}
	}
	_ = out
}

func BenchmarkTRS(b *testing.B) {
	half := math.Sqrt2 / 2
	q := [4]float64{0, half, 0, half}

	for b.Loop() {
		_ = TRS(V3(1, 2, 3), q, V3(2, 1, 0.5))
	}
}

// BenchmarkNodeWorldMatrix composes a glTF-style node path of depth 8.
func BenchmarkNodeWorldMatrix(b *testing.B) {
	local := TRS(V3(0, 1, 0), [4]float64{0, 0.3826834, 0, 0.9238795}, V3(1, 1, 1))

	for b.Loop() {
		world := Identity()
		for range 8 {
			world = world.Mul(local)
		}
		_ = world
	}
}

func BenchmarkNormalMatrix(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5)).Mul(Scale(V3(2, 1, 0.5)))
	n := V3(0, 0, 1)

	b.Run("Build", func(b *testing.B) {
		for b.Loop() {
			_ = m.NormalMatrix()
		}
	})
	b.Run("Apply", func(b *testing.B) {
		nm := m.NormalMatrix()
		for b.Loop() {
			_ = nm.MulVec3Dir(n).Normalize()
		}
	})
}

// BenchmarkClipTriangle projects one triangle to clip space with the
// thumbnail camera's matrices.
func BenchmarkClipTriangle(b *testing.B) {
	vp := Perspective(math.Pi/4, 1, 0.5, 20).Mul(LookAt(V3(-5.7, 4.2, -8.2), V3(0, 0, 0), V3(0, 1, 0)))
	tri := [3]Vec3{V3(-1, 0, 0), V3(1, 0, 0), V3(0, 1.5, 0)}
	var clip [3]Vec4

	for b.Loop() {
		for i, p := range tri {
			clip[i] = vp.MulVec4(V4FromV3(p, 1))
		}
	}
	_ = clip
}
