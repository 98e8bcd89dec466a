package voxelize

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// LoadGLTF reads the triangle primitives of the default scene of a .gltf or
// .glb file as world-space meshes. Node transforms are applied; every mesh
// gets the given layer and transmittance.
func LoadGLTF(path string, layer uint, transmittance float32) ([]Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("voxelize: open %s: %w", path, err)
	}
	return MeshesFromDocument(doc, layer, transmittance)
}

// MeshesFromDocument extracts the triangle primitives of doc's default scene.
func MeshesFromDocument(doc *gltf.Document, layer uint, transmittance float32) ([]Mesh, error) {
	var roots []uint32
	switch {
	case doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		for i := range doc.Nodes {
			roots = append(roots, uint32(i)) //nolint:gosec // node count fits uint32
		}
	}

	l := loader{doc: doc, layer: layer, transmittance: transmittance}
	for _, n := range roots {
		if err := l.node(n, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	return l.meshes, nil
}

// maxNodeDepth bounds the node hierarchy walk against cyclic files.
const maxNodeDepth = 64

type loader struct {
	doc           *gltf.Document
	layer         uint
	transmittance float32
	meshes        []Mesh
}

func (l *loader) node(index uint32, parent mgl32.Mat4, depth int) error {
	if depth > maxNodeDepth {
		return fmt.Errorf("voxelize: node hierarchy deeper than %d", maxNodeDepth)
	}
	if int(index) >= len(l.doc.Nodes) {
		return fmt.Errorf("voxelize: node %d out of range", index)
	}
	n := l.doc.Nodes[index]
	world := parent.Mul4(nodeMatrix(n))

	if n.Mesh != nil {
		if int(*n.Mesh) >= len(l.doc.Meshes) {
			return fmt.Errorf("voxelize: node %d references missing mesh %d", index, *n.Mesh)
		}
		gm := l.doc.Meshes[*n.Mesh]
		for pi, prim := range gm.Primitives {
			m, ok, err := l.primitive(prim)
			if err != nil {
				return fmt.Errorf("voxelize: mesh %q primitive %d: %w", gm.Name, pi, err)
			}
			if !ok {
				continue
			}
			m.Name = gm.Name
			l.meshes = append(l.meshes, m.Transform(world))
		}
	}
	for _, c := range n.Children {
		if err := l.node(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// primitive reads a triangle-list primitive; other modes are skipped.
func (l *loader) primitive(prim *gltf.Primitive) (Mesh, bool, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return Mesh{}, false, nil
	}
	posIndex, ok := prim.Attributes[gltf.POSITION]
	if !ok || int(posIndex) >= len(l.doc.Accessors) {
		return Mesh{}, false, fmt.Errorf("no POSITION accessor")
	}
	raw, err := modeler.ReadPosition(l.doc, l.doc.Accessors[posIndex], nil)
	if err != nil {
		return Mesh{}, false, fmt.Errorf("read positions: %w", err)
	}
	m := Mesh{
		Positions:     make([]mgl32.Vec3, len(raw)),
		Layer:         l.layer,
		Transmittance: l.transmittance,
	}
	for i, p := range raw {
		m.Positions[i] = mgl32.Vec3(p)
	}
	if prim.Indices != nil {
		if int(*prim.Indices) >= len(l.doc.Accessors) {
			return Mesh{}, false, fmt.Errorf("indices accessor %d out of range", *prim.Indices)
		}
		m.Indices, err = modeler.ReadIndices(l.doc, l.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return Mesh{}, false, fmt.Errorf("read indices: %w", err)
		}
		for _, i := range m.Indices {
			if int(i) >= len(m.Positions) {
				return Mesh{}, false, fmt.Errorf("index %d out of range", i)
			}
		}
	}
	return m, true, nil
}

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// nodeMatrix returns the local transform of n: its matrix when set,
// otherwise translation * rotation * scale.
func nodeMatrix(n *gltf.Node) mgl32.Mat4 {
	mat := n.MatrixOrDefault()
	if mat != identityMatrix {
		var m mgl32.Mat4
		for i, v := range mat {
			m[i] = float32(v)
		}
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(q.Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

// SaveGLB writes meshes as one glTF binary file, one glTF mesh per Mesh.
func SaveGLB(path string, meshes []Mesh) error {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "SemiStaticLights voxelize"
	for i := range meshes {
		m := &meshes[i]
		positions := make([][3]float32, len(m.Positions))
		for k, p := range m.Positions {
			positions[k] = p
		}
		prim := &gltf.Primitive{
			Attributes: map[string]uint32{
				gltf.POSITION: uint32(modeler.WritePosition(doc, positions)),
			},
		}
		if m.Indices != nil {
			prim.Indices = gltf.Index(uint32(modeler.WriteIndices(doc, m.Indices)))
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: m.Name, Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(uint32(i))}) //nolint:gosec // mesh count fits uint32
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(i))           //nolint:gosec // node count fits uint32
	}
	return gltf.SaveBinary(doc, path)
}
