package render

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// Light is a directional light. Dir points from the surface toward the light.
type Light struct {
	Dir     math3d.Vec3
	Diffuse float64
}

// Lighting is a fixed light rig: ambient, directional diffuse lights and a
// Blinn-Phong highlight from the first (key) light.
type Lighting struct {
	Ambient          float64
	Lights           []Light
	SpecularPower    float64
	SpecularStrength float64
}

// DefaultLighting is a key light from above right and a dim fill from
// behind left.
var DefaultLighting = Lighting{
	Ambient: 0.15,
	Lights: []Light{
		{Dir: math3d.V3(0.5, 0.8, 0.3).Normalize(), Diffuse: 0.60},
		{Dir: math3d.V3(-0.3, 0.2, -0.5).Normalize(), Diffuse: 0.15},
	},
	SpecularPower:    32,
	SpecularStrength: 0.10,
}

// Shade returns the diffuse factor (ambient included, at most 1) and the
// additive specular term for a surface with normal n seen along toEye.
//
// Surfaces are two-sided: n is flipped to face the viewer. Diffuse uses
// |n.L|, so a light behind a face still contributes.
func (l Lighting) Shade(n, toEye math3d.Vec3) (diffuse, specular float64) {
	n = n.Normalize()
	toEye = toEye.Normalize()
	if n.Dot(toEye) < 0 {
		n = n.Scale(-1)
	}

	diffuse = l.Ambient
	for _, light := range l.Lights {
		diffuse += math.Abs(n.Dot(light.Dir)) * light.Diffuse
	}
	diffuse = math.Min(diffuse, 1)

	if len(l.Lights) > 0 && l.SpecularStrength > 0 {
		h := l.Lights[0].Dir.Add(toEye).Normalize()
		if nh := n.Dot(h); nh > 0 {
			specular = math.Pow(nh, l.SpecularPower) * l.SpecularStrength
		}
	}
	return diffuse, specular
}
