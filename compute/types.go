package compute

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// VolumeID is an opaque handle to a 3D volume owned by a Device.
type VolumeID uint64

// BufferID is an opaque handle to a linear buffer owned by a Device.
type BufferID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

var (
	// ErrInvalidVolume is returned when a dispatch references a volume the
	// device does not know, usually after a device reset.
	ErrInvalidVolume = errors.New("compute: invalid volume")

	// ErrInvalidBuffer is returned for an unknown buffer ID.
	ErrInvalidBuffer = errors.New("compute: invalid buffer")

	// ErrDeviceClosed is returned by every method after Close.
	ErrDeviceClosed = errors.New("compute: device closed")

	// ErrUnknownKernel is returned when Dispatch is called with an
	// unsupported kernel.
	ErrUnknownKernel = errors.New("compute: unknown kernel")
)

// VolumeDesc describes a 3D volume. Every texel is 32 bits wide whatever the
// format; Format records how the pipeline interprets it (R8Unorm for
// geometry volumes, RGBA8Unorm for lighting towers).
type VolumeDesc struct {
	Label  string
	Width  int
	Height int
	Depth  int
	Format gputypes.TextureFormat
}

// Texels returns the number of texels in the volume.
func (d VolumeDesc) Texels() int { return d.Width * d.Height * d.Depth }

// Validate checks the dimensions and format.
func (d VolumeDesc) Validate() error {
	if d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		return fmt.Errorf("compute: volume %q has invalid size %dx%dx%d", d.Label, d.Width, d.Height, d.Depth)
	}
	switch d.Format {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatRGBA8Unorm:
		return nil
	default:
		return fmt.Errorf("compute: volume %q has unsupported format %v", d.Label, d.Format)
	}
}

// BufferDesc describes a linear buffer.
type BufferDesc struct {
	Label string
	Size  int
	Usage gputypes.BufferUsage
}

// Kernel identifies one of the pipeline's compute kernels.
type Kernel uint8

// Pipeline kernels.
const (
	// KernelPackOpacity reads Accumulation and writes Output.
	KernelPackOpacity Kernel = iota + 1

	// KernelDirectionalCopy reads Input (finer level) and writes the central
	// block of Output (coarser level).
	KernelDirectionalCopy

	// KernelPropagateFromAmbient reads Input and writes the slab
	// CascadeZIndex[3] of Forward and Backward.
	KernelPropagateFromAmbient

	// KernelPropagateFromUpper reads Input and the slab above in Forward and
	// Backward, and writes slab CascadeZIndex[3].
	KernelPropagateFromUpper
)

// String returns the kernel name used for labels and logs.
func (k Kernel) String() string {
	switch k {
	case KernelPackOpacity:
		return "pack_opacity"
	case KernelDirectionalCopy:
		return "directional_copy"
	case KernelPropagateFromAmbient:
		return "propagate_ambient"
	case KernelPropagateFromUpper:
		return "propagate_upper"
	default:
		return fmt.Sprintf("Kernel(%d)", uint8(k))
	}
}

// Domain returns the edge of the cubic iteration domain of k for grid
// resolution n.
func (k Kernel) Domain(n int) int {
	if k == KernelDirectionalCopy {
		return n / 2
	}
	return n
}
