// Copyright 2026 The SemiStaticLights Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package volume holds the voxel addressing and texel packing shared by the
// host accumulation grid, the CPU kernels and the WGSL kernels.
//
// Every volume is a dense array of 32-bit texels indexed as
//
//	index = x + n*(y + n*z)
//
// Geometry volumes store an 8-bit unorm transmittance in the low byte
// (1 = fully transparent, 0 = opaque). Lighting towers store RGBA8 unorm
// packed little-endian (r | g<<8 | b<<16 | a<<24) and are n*n*(n*cascades)
// texels tall, cascade c occupying z slab [c*n, (c+1)*n).
package volume

import "github.com/chewxy/math32"

// Index returns the linear texel index of (x, y, z) in a volume n texels wide
// and n texels high.
func Index(n, x, y, z int) int {
	return x + n*(y+n*z)
}

// Coords is the inverse of Index.
func Coords(n, i int) (x, y, z int) {
	x = i % n
	y = (i / n) % n
	z = i / (n * n)
	return x, y, z
}

// PackUnorm8 quantizes v to 8 bits, clamping to [0, 1] first.
// Rounds half up, matching pack_unorm8 in the WGSL kernels.
func PackUnorm8(v float32) uint32 {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint32(math32.Floor(v*255 + 0.5))
}

// UnpackUnorm8 expands the low byte of t to [0, 1].
func UnpackUnorm8(t uint32) float32 {
	return float32(t&0xFF) / 255
}

// PackRGBA8 packs a colour into one RGBA8 unorm texel.
func PackRGBA8(r, g, b, a float32) uint32 {
	return PackUnorm8(r) | PackUnorm8(g)<<8 | PackUnorm8(b)<<16 | PackUnorm8(a)<<24
}

// UnpackRGBA8 is the inverse of PackRGBA8 up to quantization.
func UnpackRGBA8(t uint32) (r, g, b, a float32) {
	return UnpackUnorm8(t), UnpackUnorm8(t >> 8), UnpackUnorm8(t >> 16), UnpackUnorm8(t >> 24)
}

// Transparent is the geometry texel of an empty voxel.
const Transparent uint32 = 0xFF
