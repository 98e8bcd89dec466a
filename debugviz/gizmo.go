package debugviz

import (
	"errors"

	"github.com/arigo/SemiStaticLights/internal/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Cube is one gizmo: a coloured cube in world space.
type Cube struct {
	Center mgl32.Vec3
	Size   float32
	Color  [4]float32
}

// voxelFrame places the voxels of one cascade in world space.
type voxelFrame struct {
	n       int
	toWorld mgl32.Mat4 // cascade local [-0.5, 0.5]^3 to world
	size    float32    // world edge of one voxel
}

func newVoxelFrame(n int, worldToCascadeLocal mgl32.Mat4) voxelFrame {
	inv := worldToCascadeLocal.Inv()
	step := inv.Mul4x1(mgl32.Vec4{1 / float32(n), 0, 0, 0}).Vec3()
	return voxelFrame{n: n, toWorld: inv, size: step.Len()}
}

func (f voxelFrame) center(x, y, z int) mgl32.Vec3 {
	n := float32(f.n)
	local := mgl32.Vec4{
		(float32(x)+0.5)/n - 0.5,
		(float32(y)+0.5)/n - 0.5,
		(float32(z)+0.5)/n - 0.5,
		1,
	}
	return f.toWorld.Mul4x1(local).Vec3()
}

// GeometryCubes returns a cube for every voxel of a geometry volume that
// blocks any light, grey and as opaque as the voxel. worldToCascadeLocal is
// the cascade's entry of Output.WorldToCascadeLocal.
func GeometryCubes(texels []uint32, n int, worldToCascadeLocal mgl32.Mat4) []Cube {
	f := newVoxelFrame(n, worldToCascadeLocal)
	var cubes []Cube
	for i, v := range texels[:n*n*n] {
		if v >= volume.Transparent {
			continue
		}
		x, y, z := volume.Coords(n, i)
		t := volume.UnpackUnorm8(v)
		cubes = append(cubes, Cube{
			Center: f.center(x, y, z),
			Size:   f.size * 0.9,
			Color:  [4]float32{t, t, t, 1 - t},
		})
	}
	return cubes
}

// TowerCubes returns small cubes coloured with the light stored for one
// cascade of a tower, sampling every stride-th voxel along each axis.
func TowerCubes(texels []uint32, n, cascade, stride int, worldToCascadeLocal mgl32.Mat4) []Cube {
	f := newVoxelFrame(n, worldToCascadeLocal)
	stride = max(stride, 1)
	var cubes []Cube
	for z := 0; z < n; z += stride {
		for y := 0; y < n; y += stride {
			for x := 0; x < n; x += stride {
				r, g, b, _ := volume.UnpackRGBA8(texels[volume.Index(n, x, y, cascade*n+z)])
				cubes = append(cubes, Cube{
					Center: f.center(x, y, z),
					Size:   f.size * 0.3,
					Color:  [4]float32{r, g, b, 1},
				})
			}
		}
	}
	return cubes
}

// cubeCorners are the corner offsets of a unit cube indexed by bit pattern
// zyx; cubeTriangles are its faces, outward facing.
var (
	cubeCorners = [8][3]float32{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5},
	}
	cubeTriangles = [36]uint32{
		0, 2, 1, 1, 2, 3,
		4, 5, 6, 5, 7, 6,
		0, 1, 4, 1, 5, 4,
		2, 6, 3, 3, 6, 7,
		0, 4, 2, 2, 4, 6,
		1, 3, 5, 3, 7, 5,
	}
)

// WriteGizmosGLB writes cubes as a single vertex-coloured glTF binary mesh.
func WriteGizmosGLB(path, name string, cubes []Cube) error {
	if len(cubes) == 0 {
		return errors.New("debugviz: no gizmos to write")
	}
	positions := make([][3]float32, 0, 8*len(cubes))
	colors := make([][4]float32, 0, 8*len(cubes))
	indices := make([]uint32, 0, 36*len(cubes))
	hasAlpha := false
	for _, c := range cubes {
		base := uint32(len(positions)) //nolint:gosec // vertex count fits uint32
		for _, k := range cubeCorners {
			positions = append(positions, [3]float32{
				c.Center[0] + k[0]*c.Size,
				c.Center[1] + k[1]*c.Size,
				c.Center[2] + k[2]*c.Size,
			})
			colors = append(colors, c.Color)
		}
		for _, i := range cubeTriangles {
			indices = append(indices, base+i)
		}
		if c.Color[3] < 1 {
			hasAlpha = true
		}
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "SemiStaticLights debugviz"

	posAccessor := modeler.WritePosition(doc, positions)
	colorAccessor := modeler.WriteColor(doc, colors)
	indicesAccessor := modeler.WriteIndices(doc, indices)
	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.COLOR_0:  uint32(colorAccessor),
		},
		Indices: gltf.Index(uint32(indicesAccessor)),
	}

	material := &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode: gltf.AlphaOpaque,
	}
	if hasAlpha {
		material.AlphaMode = gltf.AlphaBlend
	}
	doc.Materials = []*gltf.Material{material}
	prim.Material = gltf.Index(0)

	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))

	return gltf.SaveBinary(doc, path)
}
