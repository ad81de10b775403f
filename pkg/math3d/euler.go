package math3d

import "math"

// EulerOrder selects how per-axis angles are composed into one rotation.
type EulerOrder int

const (
	// EulerXYZ composes R = Rx * Ry * Rz. Java block models use it.
	EulerXYZ EulerOrder = iota
	// EulerZYX composes R = Rz * Ry * Rx. Bedrock and free-form models use it.
	EulerZYX
)

// String returns the order name.
func (o EulerOrder) String() string {
	if o == EulerZYX {
		return "ZYX"
	}
	return "XYZ"
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RotateEuler builds a rotation from angles in degrees about X, Y and Z.
func RotateEuler(deg Vec3, order EulerOrder) Mat4 {
	rx := RotateX(Deg2Rad(deg.X))
	ry := RotateY(Deg2Rad(deg.Y))
	rz := RotateZ(Deg2Rad(deg.Z))
	if order == EulerZYX {
		return rz.Mul(ry).Mul(rx)
	}
	return rx.Mul(ry).Mul(rz)
}

// RotateAround builds T(pivot) * R * T(-pivot), a rotation about pivot.
func RotateAround(pivot Vec3, deg Vec3, order EulerOrder) Mat4 {
	return Translate(pivot).Mul(RotateEuler(deg, order)).Mul(Translate(pivot.Scale(-1)))
}
