package semistaticlights

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Cascade is one nested level of the light volume. Cascade i+1 is concentric
// with cascade i and twice its linear extent.
type Cascade struct {
	Index      int
	Resolution int
	PixelSize  float32
	HalfExtent float32

	// Center and Rotation place the light-local frame in the world.
	Center   mgl32.Vec3
	Rotation mgl32.Quat
}

// newCascades lays out every cascade of cfg. cfg must be valid.
func newCascades(cfg Config) []Cascade {
	out := make([]Cascade, cfg.NumCascades)
	for i := range out {
		ps := cfg.BasePixelSize * math32.Ldexp(1, i)
		out[i] = Cascade{
			Index:      i,
			Resolution: cfg.GridResolution,
			PixelSize:  ps,
			HalfExtent: 0.5 * float32(cfg.GridResolution) * ps,
			Center:     cfg.Center,
			Rotation:   cfg.Light.Rotation.Normalize(),
		}
	}
	return out
}

// LightLocalToWorld places the light-local frame at Center.
func (c Cascade) LightLocalToWorld() mgl32.Mat4 {
	return mgl32.Translate3D(c.Center[0], c.Center[1], c.Center[2]).Mul4(c.Rotation.Mat4())
}

// WorldToLightLocal is the inverse of LightLocalToWorld.
func (c Cascade) WorldToLightLocal() mgl32.Mat4 {
	return c.Rotation.Inverse().Mat4().Mul4(mgl32.Translate3D(-c.Center[0], -c.Center[1], -c.Center[2]))
}

// WorldToLocal maps the cascade onto [-0.5, 0.5]^3.
func (c Cascade) WorldToLocal() mgl32.Mat4 {
	s := 1 / (2 * c.HalfExtent)
	return mgl32.Scale3D(s, s, s).Mul4(c.WorldToLightLocal())
}

// WorldToVoxel maps the cascade onto voxel coordinates [0, Resolution)^3;
// voxel (x, y, z) spans [x, x+1) along each axis.
func (c Cascade) WorldToVoxel() mgl32.Mat4 {
	h := 0.5 * float32(c.Resolution)
	s := 1 / c.PixelSize
	return mgl32.Translate3D(h, h, h).Mul4(mgl32.Scale3D(s, s, s)).Mul4(c.WorldToLightLocal())
}

// VoxelCenter returns the world position of the centre of voxel (x, y, z).
func (c Cascade) VoxelCenter(x, y, z int) mgl32.Vec3 {
	h := 0.5 * float32(c.Resolution)
	local := mgl32.Vec3{
		(float32(x) + 0.5 - h) * c.PixelSize,
		(float32(y) + 0.5 - h) * c.PixelSize,
		(float32(z) + 0.5 - h) * c.PixelSize,
	}
	return c.LightLocalToWorld().Mul4x1(local.Vec4(1)).Vec3()
}

// Contains reports whether world lies inside the cascade.
func (c Cascade) Contains(world mgl32.Vec3) bool {
	p := c.WorldToLocal().Mul4x1(world.Vec4(1))
	return math32.Abs(p[0]) <= 0.5 && math32.Abs(p[1]) <= 0.5 && math32.Abs(p[2]) <= 0.5
}

// rasterView describes pose o of this cascade to a VoxelRasterizer.
func (c Cascade) rasterView(o Orientation, mask uint32) RasterView {
	return RasterView{
		Cascade:      c.Index,
		Pose:         o,
		Position:     c.Center,
		Rotation:     c.Rotation.Mul(o.Rotation()),
		HalfExtent:   c.HalfExtent,
		Near:         -c.HalfExtent,
		Far:          c.HalfExtent,
		Resolution:   c.Resolution,
		WorldToVoxel: c.WorldToVoxel(),
		CullingMask:  mask,
	}
}
