// Package voxelize rasterizes triangle meshes into the opacity grids of the
// light-bounce pipeline on the CPU.
//
// A Scene holds occluder meshes in world space. Rasterizer implements
// semistaticlights.VoxelRasterizer by drawing every triangle orthographically
// for each pose and depositing its transmittance in the voxel under each
// covered pixel, so the three poses of a cascade together catch surfaces of
// any orientation. Projector hands Rasterizers to a pipeline.
package voxelize

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is a triangle mesh occluder.
type Mesh struct {
	Name string

	// Positions are world-space vertices.
	Positions []mgl32.Vec3

	// Indices lists triangles as vertex index triples. When nil, Positions
	// are taken three at a time.
	Indices []uint32

	// Layer is the culling layer (0-31) matched against the view's
	// culling mask.
	Layer uint

	// Transmittance is the fraction of light passing through a voxel the
	// mesh touches: 0 for solid occluders.
	Transmittance float32
}

// boxFaces are the 12 triangles of a box over corners indexed by bit
// pattern zyx.
var boxFaces = []uint32{
	0, 2, 1, 1, 2, 3, // -z
	4, 5, 6, 5, 7, 6, // +z
	0, 1, 4, 1, 5, 4, // -y
	2, 6, 3, 3, 6, 7, // +y
	0, 4, 2, 2, 4, 6, // -x
	1, 3, 5, 3, 7, 5, // +x
}

// Box returns a solid axis-aligned box between corners lo and hi.
func Box(lo, hi mgl32.Vec3) Mesh {
	pos := make([]mgl32.Vec3, 8)
	for i := range pos {
		p := lo
		if i&1 != 0 {
			p[0] = hi[0]
		}
		if i&2 != 0 {
			p[1] = hi[1]
		}
		if i&4 != 0 {
			p[2] = hi[2]
		}
		pos[i] = p
	}
	return Mesh{Name: "box", Positions: pos, Indices: append([]uint32(nil), boxFaces...)}
}

// Quad returns a two-sided rectangle with corner origin spanned by u and v.
func Quad(origin, u, v mgl32.Vec3) Mesh {
	return Mesh{
		Name:      "quad",
		Positions: []mgl32.Vec3{origin, origin.Add(u), origin.Add(v), origin.Add(u).Add(v)},
		Indices:   []uint32{0, 1, 2, 1, 3, 2},
	}
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if m.Indices != nil {
		return len(m.Indices) / 3
	}
	return len(m.Positions) / 3
}

// Triangle returns the corners of triangle i.
func (m *Mesh) Triangle(i int) (a, b, c mgl32.Vec3) {
	if m.Indices != nil {
		return m.Positions[m.Indices[3*i]], m.Positions[m.Indices[3*i+1]], m.Positions[m.Indices[3*i+2]]
	}
	return m.Positions[3*i], m.Positions[3*i+1], m.Positions[3*i+2]
}

// Transform returns a copy of m with every position multiplied by mat.
func (m Mesh) Transform(mat mgl32.Mat4) Mesh {
	pos := make([]mgl32.Vec3, len(m.Positions))
	for i, p := range m.Positions {
		pos[i] = mat.Mul4x1(p.Vec4(1)).Vec3()
	}
	m.Positions = pos
	return m
}

// Bounds returns the axis-aligned bounds of the positions.
func (m *Mesh) Bounds() (lo, hi mgl32.Vec3) {
	if len(m.Positions) == 0 {
		return
	}
	lo, hi = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return lo, hi
}

// Scene is a set of occluder meshes. It is safe for concurrent use; meshes
// added while a pose is rasterized show up from the next pose on.
type Scene struct {
	mu     sync.RWMutex
	meshes []Mesh
}

// NewScene returns a scene holding meshes.
func NewScene(meshes ...Mesh) *Scene {
	return &Scene{meshes: meshes}
}

// Add appends meshes to the scene.
func (s *Scene) Add(meshes ...Mesh) {
	s.mu.Lock()
	s.meshes = append(s.meshes, meshes...)
	s.mu.Unlock()
}

// Reset removes every mesh.
func (s *Scene) Reset() {
	s.mu.Lock()
	s.meshes = nil
	s.mu.Unlock()
}

// Len returns the number of meshes.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meshes)
}

// snapshot returns the current meshes. The slice must not be modified.
func (s *Scene) snapshot() []Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meshes[:len(s.meshes):len(s.meshes)]
}
