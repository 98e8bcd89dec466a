package semistaticlights

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
)

// OpacityTarget receives voxel opacity from a rasterizer. Deposit only ever
// lowers the stored transmittance, so deposits from different poses or
// goroutines commute.
type OpacityTarget interface {
	// Resolution is the voxel count along each axis.
	Resolution() int

	// Deposit records transmittance t (0 = opaque, 1 = clear) at voxel
	// (x, y, z). Out-of-range voxels are ignored.
	Deposit(x, y, z int, t float32)
}

// RasterView is one orthographic pose of one cascade.
//
// The camera sits at Position looking along Rotation's +Z, with +X right and
// +Y up. It sees the square [-HalfExtent, HalfExtent]^2 over the depth range
// [Near, Far]. WorldToVoxel converts world positions into the target's voxel
// coordinates, identical for the three poses of a cascade.
type RasterView struct {
	Cascade      int
	Pose         Orientation
	Position     mgl32.Vec3
	Rotation     mgl32.Quat
	HalfExtent   float32
	Near, Far    float32
	Resolution   int
	WorldToVoxel mgl32.Mat4
	CullingMask  uint32
}

// Keyword returns the pose keyword ("", "ORIENTATION_2" or "ORIENTATION_3").
func (v RasterView) Keyword() string { return v.Pose.Keyword() }

// View returns the world-to-camera matrix.
func (v RasterView) View() mgl32.Mat4 {
	return v.Rotation.Inverse().Mat4().Mul4(mgl32.Translate3D(-v.Position[0], -v.Position[1], -v.Position[2]))
}

// Projection maps camera space onto [-1, 1]^3 with +Z into the screen.
func (v RasterView) Projection() mgl32.Mat4 {
	s := 1 / v.HalfExtent
	depth := v.Far - v.Near
	mid := 0.5 * (v.Far + v.Near)
	return mgl32.Scale3D(s, s, 2/depth).Mul4(mgl32.Translate3D(0, 0, -mid))
}

// Axes returns the camera's right, up and forward world directions.
func (v RasterView) Axes() (right, up, forward mgl32.Vec3) {
	return v.Rotation.Rotate(mgl32.Vec3{1, 0, 0}),
		v.Rotation.Rotate(mgl32.Vec3{0, 1, 0}),
		v.Rotation.Rotate(mgl32.Vec3{0, 0, 1})
}

// VoxelRasterizer draws the scene's occluders into an opacity target.
// Rasterize is called three times per cascade, once per pose.
type VoxelRasterizer interface {
	Rasterize(ctx context.Context, view RasterView, target OpacityTarget) error
}

// RasterizerFunc adapts a function to VoxelRasterizer.
type RasterizerFunc func(ctx context.Context, view RasterView, target OpacityTarget) error

// Rasterize calls f.
func (f RasterizerFunc) Rasterize(ctx context.Context, view RasterView, target OpacityTarget) error {
	return f(ctx, view, target)
}

// Projector hands out the rasterizer the pipeline draws with. The pipeline
// acquires it on first use and releases it on Close.
type Projector interface {
	AcquireRasterizer() (VoxelRasterizer, error)
	ReleaseRasterizer(VoxelRasterizer)
}

type staticProjector struct{ r VoxelRasterizer }

func (p staticProjector) AcquireRasterizer() (VoxelRasterizer, error) { return p.r, nil }
func (staticProjector) ReleaseRasterizer(VoxelRasterizer)             {}

// StaticProjector returns a Projector that always hands out r.
func StaticProjector(r VoxelRasterizer) Projector {
	return staticProjector{r: r}
}
