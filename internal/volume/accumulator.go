// Copyright 2026 The SemiStaticLights Authors
// SPDX-License-Identifier: BSD-3-Clause

package volume

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// Accumulator is the host-side float grid the rasterizer writes opacity into
// before it is packed into a geometry volume.
//
// Deposits only ever lower a voxel (atomic min), so the three rasterization
// poses may run in any order or concurrently.
type Accumulator struct {
	n    int
	bits []atomic.Uint32
}

var oneBits = math.Float32bits(1)

// NewAccumulator allocates an n*n*n grid set to 1 (fully transparent).
func NewAccumulator(n int) *Accumulator {
	a := &Accumulator{n: n, bits: make([]atomic.Uint32, n*n*n)}
	a.Reset()
	return a
}

// Resolution returns the grid edge length.
func (a *Accumulator) Resolution() int { return a.n }

// Reset sets every voxel back to 1.
func (a *Accumulator) Reset() {
	for i := range a.bits {
		a.bits[i].Store(oneBits)
	}
}

// Deposit lowers voxel (x, y, z) to v if v is smaller than its current value.
// Out-of-range coordinates are ignored. v is clamped to [0, 1].
func (a *Accumulator) Deposit(x, y, z int, v float32) {
	n := a.n
	if x < 0 || y < 0 || z < 0 || x >= n || y >= n || z >= n {
		return
	}
	if !(v > 0) {
		v = 0
	} else if v > 1 {
		return
	}
	slot := &a.bits[Index(n, x, y, z)]
	nb := math.Float32bits(v)
	for {
		old := slot.Load()
		if math.Float32frombits(old) <= v {
			return
		}
		if slot.CompareAndSwap(old, nb) {
			return
		}
	}
}

// At returns the current value of voxel (x, y, z).
func (a *Accumulator) At(x, y, z int) float32 {
	return math.Float32frombits(a.bits[Index(a.n, x, y, z)].Load())
}

// AppendBytes appends the grid as little-endian float32 values, the layout
// expected by the pack kernel's accumulation buffer.
func (a *Accumulator) AppendBytes(dst []byte) []byte {
	for i := range a.bits {
		dst = binary.LittleEndian.AppendUint32(dst, a.bits[i].Load())
	}
	return dst
}

// ByteSize is the size of the grid once serialized by AppendBytes.
func (a *Accumulator) ByteSize() int { return 4 * len(a.bits) }
