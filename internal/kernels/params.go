// Copyright 2026 The SemiStaticLights Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import (
	"encoding/binary"
	"math"
)

// WorkgroupSize is the edge of the cubic workgroup every kernel is declared with.
const WorkgroupSize = 4

// ParamsSize is the byte size of the Params uniform block.
const ParamsSize = 112

// Params is the uniform block shared by all kernels. Field order and padding
// follow the WGSL Params struct:
//
//	grid_resolution: u32, pad x3    (16)
//	dx, dy, dz:      vec4<i32>      (48)
//	cascade_z_index: vec4<i32>      (16)
//	ambient_forward, ambient_backward: vec4<f32> (32)
type Params struct {
	GridResolution uint32

	// Orientation frame in light-local axes; DZ is the propagation axis.
	DX, DY, DZ [3]int32

	// Upper-cascade lookup offsets (x, y, z) and output slab base (w).
	CascadeZIndex [4]int32

	AmbientForward  [4]float32
	AmbientBackward [4]float32
}

// Bytes serializes p in uniform-buffer layout.
func (p *Params) Bytes() []byte {
	b := make([]byte, 0, ParamsSize)
	b = binary.LittleEndian.AppendUint32(b, p.GridResolution)
	b = append(b, make([]byte, 12)...)
	for _, v := range [3][3]int32{p.DX, p.DY, p.DZ} {
		for _, c := range v {
			b = binary.LittleEndian.AppendUint32(b, uint32(c)) //nolint:gosec // two's complement is intended
		}
		b = binary.LittleEndian.AppendUint32(b, 0)
	}
	for _, c := range p.CascadeZIndex {
		b = binary.LittleEndian.AppendUint32(b, uint32(c)) //nolint:gosec // two's complement is intended
	}
	for _, c := range p.AmbientForward {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(c))
	}
	for _, c := range p.AmbientBackward {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(c))
	}
	return b
}

// Groups returns the workgroup count along each axis for an iteration domain
// of edge n.
func Groups(n int) uint32 {
	return uint32((n + WorkgroupSize - 1) / WorkgroupSize) //nolint:gosec // n is a small positive grid size
}
