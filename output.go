package semistaticlights

import (
	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/volume"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// NumViewRays is the number of lighting towers: two directions for each of
// the three orientations.
const NumViewRays = 6

// ViewRay is one lighting tower and the direction of the light it holds.
type ViewRay struct {
	Orientation Orientation
	Backward    bool

	// WorldForward is the world direction the light in this tower travels.
	WorldForward mgl32.Vec3

	// Tower is the N x N x (N*NumCascades) RGBA8 volume. Texel
	// (x, y, c*N + z) is voxel (x, y, z) of cascade c in light-local axes.
	Tower compute.VolumeID

	// WorldToLightLocal maps world positions into the tower's light-local
	// axes (world units, origin at the centre).
	WorldToLightLocal mgl32.Mat4
}

// ShadingParams carries what a shader needs to locate a world position in
// the towers.
type ShadingParams struct {
	// WorldToCascadeZero maps world positions onto cascade 0's [-0.5, 0.5]^3.
	WorldToCascadeZero mgl32.Mat4

	// ScaleFactor is 4N/(N-1): with m the largest absolute cascade-0 local
	// coordinate, floor(log2(max(m*ScaleFactor, 1))) picks the finest cascade
	// whose border is at least half a voxel away.
	ScaleFactor float32

	// InvCascadeCount is 1/NumCascades, the height of one slab in tower w.
	InvCascadeCount float32

	// GridEpsilon is half a texel (0.5/N); the z coordinate inside a slab is
	// clamped to [GridEpsilon, 1-GridEpsilon] so filtering never bleeds into
	// the neighbouring cascade.
	GridEpsilon float32

	NumCascades int
}

func newShadingParams(cascade0 Cascade, numCascades int) ShadingParams {
	n := float32(cascade0.Resolution)
	return ShadingParams{
		WorldToCascadeZero: cascade0.WorldToLocal(),
		ScaleFactor:        4 * n / (n - 1),
		InvCascadeCount:    1 / float32(numCascades),
		GridEpsilon:        0.5 / n,
		NumCascades:        numCascades,
	}
}

// SelectCascade returns the cascade to sample at cascade-0 local position p.
func (s ShadingParams) SelectCascade(p mgl32.Vec3) int {
	m := math32.Max(math32.Abs(p[0]), math32.Max(math32.Abs(p[1]), math32.Abs(p[2])))
	c := int(math32.Floor(math32.Log2(math32.Max(m*s.ScaleFactor, 1))))
	return min(c, s.NumCascades-1)
}

// TowerCoord returns the normalized tower coordinate of world position
// world, and the cascade it falls in. u and v are in [0, 1]; w addresses the
// whole tower height.
func (s ShadingParams) TowerCoord(world mgl32.Vec3) (uvw mgl32.Vec3, cascade int) {
	p := s.WorldToCascadeZero.Mul4x1(world.Vec4(1)).Vec3()
	cascade = s.SelectCascade(p)
	p = p.Mul(1 / math32.Ldexp(1, cascade))

	u := clamp01(p[0] + 0.5)
	v := clamp01(p[1] + 0.5)
	z := math32.Min(math32.Max(p[2]+0.5, s.GridEpsilon), 1-s.GridEpsilon)
	w := (float32(cascade) + z) * s.InvCascadeCount
	return mgl32.Vec3{u, v, w}, cascade
}

func clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}

// Output is everything a recomputation publishes. It is a value snapshot;
// the towers it names are overwritten in place by later recomputations.
type Output struct {
	// Generation counts successful recomputations of the pipeline.
	Generation uint64

	// StructureVersion changes whenever the towers are reallocated; bound
	// shader resources must be refreshed when it does.
	StructureVersion uint64

	GridResolution int
	NumCascades    int
	Center         mgl32.Vec3

	WorldToLightLocal mgl32.Mat4

	// WorldToCascadeLocal maps world positions onto each cascade's
	// [-0.5, 0.5]^3.
	WorldToCascadeLocal []mgl32.Mat4

	Rays    [NumViewRays]ViewRay
	Shading ShadingParams
}

// Ray returns the view ray of orientation o in the given direction.
func (out *Output) Ray(o Orientation, backward bool) ViewRay {
	return out.Rays[o.RayIndex(backward)]
}

// Sample looks up the nearest tower texel of world position world in the
// tower texels read back for one ray (see Pipeline.ReadTower).
func (out *Output) Sample(texels []uint32, world mgl32.Vec3) Color {
	n := out.GridResolution
	uvw, _ := out.Shading.TowerCoord(world)
	x := min(int(uvw[0]*float32(n)), n-1)
	y := min(int(uvw[1]*float32(n)), n-1)
	z := min(int(uvw[2]*float32(n*out.NumCascades)), n*out.NumCascades-1)
	r, g, b, _ := volume.UnpackRGBA8(texels[volume.Index(n, x, y, z)])
	return Color{r, g, b}
}
