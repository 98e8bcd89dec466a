package voxelize

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	semistaticlights "github.com/arigo/SemiStaticLights"
	"github.com/arigo/SemiStaticLights/internal/parallel"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Rasterizer draws a Scene into opacity targets. Triangles of a mesh are
// split across a worker pool, so targets must accept concurrent deposits.
type Rasterizer struct {
	scene *Scene
	pool  *parallel.WorkerPool

	triangles atomic.Uint64
	deposits  atomic.Uint64
}

var _ semistaticlights.VoxelRasterizer = (*Rasterizer)(nil)

// NewRasterizer returns a rasterizer for scene running on the given number
// of workers (GOMAXPROCS when workers <= 0). Close releases the workers.
func NewRasterizer(scene *Scene, workers int) *Rasterizer {
	return &Rasterizer{scene: scene, pool: parallel.NewWorkerPool(workers)}
}

// Close stops the worker pool.
func (r *Rasterizer) Close() { r.pool.Close() }

// Counters returns the number of triangles drawn and of voxel deposits made
// so far.
func (r *Rasterizer) Counters() (triangles, deposits uint64) {
	return r.triangles.Load(), r.deposits.Load()
}

// Rasterize draws every mesh whose layer is in the view's culling mask.
func (r *Rasterizer) Rasterize(ctx context.Context, v semistaticlights.RasterView, target semistaticlights.OpacityTarget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.Resolution <= 0 || !(v.HalfExtent > 0) {
		return fmt.Errorf("voxelize: invalid view: resolution %d, half extent %v", v.Resolution, v.HalfExtent)
	}

	view := v.View()
	g := &pixelGrid{
		n:          v.Resolution,
		halfExtent: v.HalfExtent,
		pixel:      2 * v.HalfExtent / float32(v.Resolution),
		near:       v.Near,
		far:        v.Far,
		camToVoxel: v.WorldToVoxel.Mul4(view.Inv()),
		target:     target,
	}

	meshes := r.scene.snapshot()
	for i := range meshes {
		m := &meshes[i]
		if m.Layer >= 32 || v.CullingMask&(1<<m.Layer) == 0 {
			continue
		}
		t := math32.Min(math32.Max(m.Transmittance, 0), 1)
		var deposits atomic.Uint64
		r.pool.Range(m.TriangleCount(), func(lo, hi int) {
			var local uint64
			for k := lo; k < hi; k++ {
				a, b, c := m.Triangle(k)
				local += g.triangle(
					view.Mul4x1(a.Vec4(1)).Vec3(),
					view.Mul4x1(b.Vec4(1)).Vec3(),
					view.Mul4x1(c.Vec4(1)).Vec3(), t)
			}
			deposits.Add(local)
		})
		r.triangles.Add(uint64(m.TriangleCount())) //nolint:gosec // count is non-negative
		r.deposits.Add(deposits.Load())

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// minPixelArea is the smallest doubled pixel-space area drawn; thinner
// triangles are edge-on and their interpolated depth is meaningless.
const minPixelArea = 1e-6

// pixelGrid is the orthographic image plane of one pose: n x n pixels over
// [-halfExtent, halfExtent]^2 in camera space.
type pixelGrid struct {
	n          int
	halfExtent float32
	pixel      float32
	near, far  float32
	camToVoxel mgl32.Mat4
	target     semistaticlights.OpacityTarget
}

// triangle rasterizes camera-space triangle abc, sampling at pixel centres,
// and deposits t in the voxel under every covered sample. Edge-on
// triangles cover nothing. It returns the number of deposits.
func (g *pixelGrid) triangle(a, b, c mgl32.Vec3, t float32) uint64 {
	if (a[2] < g.near && b[2] < g.near && c[2] < g.near) ||
		(a[2] > g.far && b[2] > g.far && c[2] > g.far) {
		return 0
	}

	ax, ay := g.toPixel(a)
	bx, by := g.toPixel(b)
	cx, cy := g.toPixel(c)
	area := edge(ax, ay, bx, by, cx, cy)
	if math32.Abs(area) < minPixelArea {
		return 0
	}

	x0 := max(0, int(math32.Ceil(min(ax, bx, cx)-0.5)))
	x1 := min(g.n-1, int(math32.Floor(max(ax, bx, cx)-0.5)))
	y0 := max(0, int(math32.Ceil(min(ay, by, cy)-0.5)))
	y1 := min(g.n-1, int(math32.Floor(max(ay, by, cy)-0.5)))

	var count uint64
	for py := y0; py <= y1; py++ {
		sy := float32(py) + 0.5
		for px := x0; px <= x1; px++ {
			sx := float32(px) + 0.5
			w0 := edge(bx, by, cx, cy, sx, sy) / area
			w1 := edge(cx, cy, ax, ay, sx, sy) / area
			w2 := edge(ax, ay, bx, by, sx, sy) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a[2] + w1*b[2] + w2*c[2]
			if z < g.near || z > g.far {
				continue
			}
			cam := mgl32.Vec4{sx*g.pixel - g.halfExtent, sy*g.pixel - g.halfExtent, z, 1}
			vox := g.camToVoxel.Mul4x1(cam)
			g.target.Deposit(
				int(math32.Floor(vox[0])),
				int(math32.Floor(vox[1])),
				int(math32.Floor(vox[2])), t)
			count++
		}
	}
	return count
}

func (g *pixelGrid) toPixel(p mgl32.Vec3) (float32, float32) {
	return (p[0] + g.halfExtent) / g.pixel, (p[1] + g.halfExtent) / g.pixel
}

// edge is twice the signed area of triangle (a, b, p).
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// Projector hands out Rasterizers over a Scene.
type Projector struct {
	Scene   *Scene
	Workers int
}

var _ semistaticlights.Projector = (*Projector)(nil)

// AcquireRasterizer returns a new Rasterizer over p.Scene.
func (p *Projector) AcquireRasterizer() (semistaticlights.VoxelRasterizer, error) {
	if p.Scene == nil {
		return nil, errors.New("voxelize: projector has no scene")
	}
	return NewRasterizer(p.Scene, p.Workers), nil
}

// ReleaseRasterizer closes a Rasterizer returned by AcquireRasterizer.
func (p *Projector) ReleaseRasterizer(r semistaticlights.VoxelRasterizer) {
	if vr, ok := r.(*Rasterizer); ok {
		vr.Close()
	}
}
