package math3d

import "math"

// RotateQuat builds the rotation matrix for the quaternion (x, y, z, w).
// The quaternion is normalized first; a zero quaternion yields identity.
func RotateQuat(x, y, z, w float64) Mat4 {
	n := math.Sqrt(x*x + y*y + z*z + w*w)
	if n < 1e-12 {
		return Identity()
	}
	x, y, z, w = x/n, y/n, z/n, w/n

	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// TRS composes translation, rotation quaternion and scale as T * R * S.
func TRS(t Vec3, q [4]float64, s Vec3) Mat4 {
	return Translate(t).Mul(RotateQuat(q[0], q[1], q[2], q[3])).Mul(Scale(s))
}
