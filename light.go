package semistaticlights

import "github.com/go-gl/mathgl/mgl32"

// DirectionalLight is the single light source the volumes are aligned to.
// Light-local Z is the direction the light travels.
type DirectionalLight struct {
	Rotation mgl32.Quat
}

// NewDirectionalLight returns a light travelling along forward.
func NewDirectionalLight(forward mgl32.Vec3) *DirectionalLight {
	if forward.Len() == 0 {
		return &DirectionalLight{Rotation: mgl32.QuatIdent()}
	}
	return &DirectionalLight{Rotation: mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, 1}, forward.Normalize())}
}

// Forward returns the world direction the light travels.
func (l *DirectionalLight) Forward() mgl32.Vec3 {
	return l.Rotation.Rotate(mgl32.Vec3{0, 0, 1})
}
