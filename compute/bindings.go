package compute

import "github.com/arigo/SemiStaticLights/internal/kernels"

// Bindings is the complete resource and parameter set of one dispatch.
// Kernels read nothing but what is bound here.
type Bindings struct {
	GridResolution int

	// Accumulation is the float grid consumed by KernelPackOpacity.
	Accumulation BufferID

	// Input is the geometry volume read by the kernel.
	Input VolumeID

	// Output is the geometry volume written by KernelPackOpacity and
	// KernelDirectionalCopy.
	Output VolumeID

	// Forward and Backward are the two lighting towers of one orientation.
	Forward  VolumeID
	Backward VolumeID

	// DX, DY, DZ is the orientation frame in light-local axes.
	DX, DY, DZ [3]int32

	// CascadeZIndex holds the upper-cascade lookup offset (x, y, z) and the
	// tower z slab written (w).
	CascadeZIndex [4]int32

	AmbientForward  [4]float32
	AmbientBackward [4]float32
}

// Params converts b into the uniform block shared by all kernels.
func (b *Bindings) Params() kernels.Params {
	return kernels.Params{
		GridResolution:  uint32(b.GridResolution), //nolint:gosec // grid size is validated positive
		DX:              b.DX,
		DY:              b.DY,
		DZ:              b.DZ,
		CascadeZIndex:   b.CascadeZIndex,
		AmbientForward:  b.AmbientForward,
		AmbientBackward: b.AmbientBackward,
	}
}
