// Copyright 2026 The SemiStaticLights Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kernels contains the four compute kernels of the light-bounce
// pipeline twice: as WGSL sources for the GPU device and as CPU reference
// functions for the software device. Both produce bit-identical results.
//
// The CPU functions process the z range [z0, z1) of their iteration domain so
// a caller can split one dispatch into independent slabs.
package kernels

import (
	"encoding/binary"
	"math"

	"github.com/arigo/SemiStaticLights/internal/volume"
)

// PackOpacity converts the float accumulation grid into 8-bit transmittance.
// Domain: n*n*n.
func PackOpacity(p *Params, accum []byte, gv []uint32, z0, z1 int) {
	n := int(p.GridResolution)
	for z := z0; z < z1; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				i := volume.Index(n, x, y, z)
				v := math.Float32frombits(binary.LittleEndian.Uint32(accum[4*i:]))
				gv[i] = volume.PackUnorm8(v)
			}
		}
	}
}

// DirectionalCopy seeds the central block [n/4, 3n/4)^3 of a coarse geometry
// volume from the fine volume one level below. Each coarse voxel becomes the
// mean of the four products t(p)*t(p+DZ) over the fine 2x2x2 block, so only
// pairs aligned with the propagation axis combine.
// Domain: (n/2)^3.
func DirectionalCopy(p *Params, fine, coarse []uint32, z0, z1 int) {
	n := int(p.GridResolution)
	q := n / 4
	half := n / 2
	dx, dy, dz := vec(p.DX), vec(p.DY), vec(p.DZ)
	at := func(v [3]int) float32 {
		return volume.UnpackUnorm8(fine[volume.Index(n, v[0], v[1], v[2])])
	}
	for z := z0; z < z1; z++ {
		for y := 0; y < half; y++ {
			for x := 0; x < half; x++ {
				f0 := [3]int{2 * x, 2 * y, 2 * z}
				p00 := f0
				p10 := add(f0, dx)
				p01 := add(f0, dy)
				p11 := add(p10, dy)
				sum := at(p00)*at(add(p00, dz)) +
					at(p10)*at(add(p10, dz)) +
					at(p01)*at(add(p01, dz)) +
					at(p11)*at(add(p11, dz))
				coarse[volume.Index(n, x+q, y+q, z+q)] = volume.PackUnorm8(sum * 0.25)
			}
		}
	}
}

// PropagateFromAmbient fills the coarsest cascade slab of both towers with the
// ambient colour attenuated by the local transmittance.
// Domain: n*n*n.
func PropagateFromAmbient(p *Params, gv, forward, backward []uint32, z0, z1 int) {
	n := int(p.GridResolution)
	base := int(p.CascadeZIndex[3])
	af, ab := p.AmbientForward, p.AmbientBackward
	for z := z0; z < z1; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				t := volume.UnpackUnorm8(gv[volume.Index(n, x, y, z)])
				o := volume.Index(n, x, y, base+z)
				forward[o] = volume.PackRGBA8(af[0]*t, af[1]*t, af[2]*t, 1)
				backward[o] = volume.PackRGBA8(ab[0]*t, ab[1]*t, ab[2]*t, 1)
			}
		}
	}
}

// PropagateFromUpper fills one cascade slab of both towers from the slab of
// the next coarser cascade. A voxel v reads the coarse voxel that light
// crosses just before entering v: on the transverse axes that is the coarse
// voxel containing v, along DZ it is the one containing v's upstream face.
// Domain: n*n*n.
func PropagateFromUpper(p *Params, gv, forward, backward []uint32, z0, z1 int) {
	n := int(p.GridResolution)
	off := [3]int{int(p.CascadeZIndex[0]), int(p.CascadeZIndex[1]), int(p.CascadeZIndex[2])}
	base := int(p.CascadeZIndex[3])
	dz := vec(p.DZ)
	for z := z0; z < z1; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				v := [3]int{x, y, z}
				up := add(off, [3]int{x >> 1, y >> 1, z >> 1})
				along := dot(v, dz)
				uf := add(up, scale(dz, ((along-1)>>1)-(along>>1)))
				ub := add(up, scale(dz, ((along+1)>>1)-(along>>1)))

				t := volume.UnpackUnorm8(gv[volume.Index(n, x, y, z)])
				o := volume.Index(n, x, y, base+z)
				forward[o] = attenuate(forward[volume.Index(n, uf[0], uf[1], uf[2])], t)
				backward[o] = attenuate(backward[volume.Index(n, ub[0], ub[1], ub[2])], t)
			}
		}
	}
}

func attenuate(texel uint32, t float32) uint32 {
	r, g, b, _ := volume.UnpackRGBA8(texel)
	return volume.PackRGBA8(r*t, g*t, b*t, 1)
}

func vec(v [3]int32) [3]int { return [3]int{int(v[0]), int(v[1]), int(v[2])} }

func add(a, b [3]int) [3]int { return [3]int{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func scale(a [3]int, s int) [3]int { return [3]int{a[0] * s, a[1] * s, a[2] * s} }

func dot(a, b [3]int) int { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
