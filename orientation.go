package semistaticlights

import "github.com/go-gl/mathgl/mgl32"

// Orientation selects which light-local axis light is propagated along.
// Orientation o uses the frame DZ = e_o, DX = e_(o+1)%3, DY = e_(o+2)%3, so
// each frame is a cyclic permutation of the light-local axes.
type Orientation int

// The three propagation orientations.
const (
	OrientationX Orientation = iota
	OrientationY
	OrientationZ
)

// Orientations lists every orientation in propagation order.
var Orientations = [3]Orientation{OrientationX, OrientationY, OrientationZ}

// rasterPoses is the order the rasterizer is invoked in; the identity frame
// comes first.
var rasterPoses = [3]Orientation{OrientationZ, OrientationY, OrientationX}

// Axes returns the frame axes as integer offsets in light-local voxel space.
func (o Orientation) Axes() (dx, dy, dz [3]int32) {
	i := int(o)
	dz[i] = 1
	dx[(i+1)%3] = 1
	dy[(i+2)%3] = 1
	return dx, dy, dz
}

// Basis returns the frame axes as light-local unit vectors.
func (o Orientation) Basis() (right, up, forward mgl32.Vec3) {
	dx, dy, dz := o.Axes()
	return vec3i(dx), vec3i(dy), vec3i(dz)
}

// Rotation returns the rotation taking light-local X, Y, Z onto the frame's
// right, up and forward axes.
func (o Orientation) Rotation() mgl32.Quat {
	r, u, f := o.Basis()
	return mgl32.Mat4ToQuat(mgl32.Mat3FromCols(r, u, f).Mat4())
}

// Keyword is the shader keyword a rasterizer receives for this pose. The
// identity frame has none.
func (o Orientation) Keyword() string {
	switch o {
	case OrientationY:
		return "ORIENTATION_2"
	case OrientationX:
		return "ORIENTATION_3"
	default:
		return ""
	}
}

// String returns "x", "y" or "z".
func (o Orientation) String() string {
	switch o {
	case OrientationX:
		return "x"
	case OrientationY:
		return "y"
	case OrientationZ:
		return "z"
	default:
		return "invalid"
	}
}

// RayIndex returns the view ray slot of this orientation: 2*o for light
// travelling along +DZ, 2*o+1 for the opposite direction.
func (o Orientation) RayIndex(backward bool) int {
	if backward {
		return 2*int(o) + 1
	}
	return 2 * int(o)
}

func vec3i(v [3]int32) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}
