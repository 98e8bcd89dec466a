package semistaticlights

import "github.com/go-gl/mathgl/mgl32"

// AmbientSampler returns the ambient radiance arriving from direction dir.
// The pipeline queries it at -forward and +forward of each orientation.
type AmbientSampler interface {
	Evaluate(dir mgl32.Vec3) Color
}

// AmbientFunc adapts a function to AmbientSampler.
type AmbientFunc func(dir mgl32.Vec3) Color

// Evaluate calls f(dir).
func (f AmbientFunc) Evaluate(dir mgl32.Vec3) Color { return f(dir) }

// ConstantAmbient is the same colour from every direction.
type ConstantAmbient Color

// Evaluate returns the constant colour.
func (c ConstantAmbient) Evaluate(mgl32.Vec3) Color { return Color(c) }

// TrilightAmbient blends sky, equator and ground colours by elevation, like a
// gradient environment.
type TrilightAmbient struct {
	Sky, Equator, Ground Color

	// Up is the sky direction; zero means +Y.
	Up mgl32.Vec3
}

// Evaluate interpolates between Equator and Sky (or Ground) by the cosine of
// the elevation of dir.
func (a TrilightAmbient) Evaluate(dir mgl32.Vec3) Color {
	up := a.Up
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	if dir.Len() == 0 {
		return a.Equator
	}
	t := dir.Normalize().Dot(up.Normalize())
	if t >= 0 {
		return a.Equator.Scale(1 - t).Add(a.Sky.Scale(t))
	}
	return a.Equator.Scale(1 + t).Add(a.Ground.Scale(-t))
}

// SH basis constants for bands 0..2.
const (
	shY00 = 0.282095
	shY1  = 0.488603
	shY2  = 1.092548
	shY20 = 0.315392
	shY22 = 0.546274
)

// SHL2 is an order-2 spherical-harmonics probe with 9 real coefficients per
// colour channel, the usual representation of a baked ambient probe.
type SHL2 [3][9]float32

func shBasis(d mgl32.Vec3) [9]float32 {
	x, y, z := d[0], d[1], d[2]
	return [9]float32{
		shY00,
		shY1 * y,
		shY1 * z,
		shY1 * x,
		shY2 * x * y,
		shY2 * y * z,
		shY20 * (3*z*z - 1),
		shY2 * x * z,
		shY22 * (x*x - y*y),
	}
}

// AddAmbient adds a constant term, so Evaluate grows by c in every direction.
func (sh *SHL2) AddAmbient(c Color) {
	sh[0][0] += c.R / shY00
	sh[1][0] += c.G / shY00
	sh[2][0] += c.B / shY00
}

// AddDirectional adds the projection of light of colour c arriving from dir.
func (sh *SHL2) AddDirectional(dir mgl32.Vec3, c Color) {
	if dir.Len() == 0 {
		return
	}
	b := shBasis(dir.Normalize())
	for i, y := range b {
		sh[0][i] += c.R * y
		sh[1][i] += c.G * y
		sh[2][i] += c.B * y
	}
}

// Evaluate reconstructs the probe in direction dir. The result is not
// clamped; negative lobes come out as negative components.
func (sh *SHL2) Evaluate(dir mgl32.Vec3) Color {
	if dir.Len() != 0 {
		dir = dir.Normalize()
	}
	b := shBasis(dir)
	var out [3]float32
	for ch := range out {
		for i, y := range b {
			out[ch] += sh[ch][i] * y
		}
	}
	return Color{out[0], out[1], out[2]}
}
