package compute

import "log/slog"

// Device executes the pipeline kernels.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and are never reused
//
// Implementations must be safe for concurrent use, although the pipeline
// only ever issues work from one goroutine at a time.
type Device interface {
	// Name returns the device name (e.g., "software", "wgpu").
	Name() string

	// Init prepares the device. Called once, by RegisterDevice or by the
	// pipeline when it creates its own device.
	Init() error

	// Close releases every resource owned by the device.
	Close()

	// CreateVolume allocates a zero-filled volume.
	CreateVolume(desc VolumeDesc) (VolumeID, error)

	// DestroyVolume releases a volume. Unknown IDs are ignored.
	DestroyVolume(id VolumeID)

	// VolumeValid reports whether id still refers to a live volume.
	VolumeValid(id VolumeID) bool

	// CreateBuffer allocates a linear buffer.
	CreateBuffer(desc BufferDesc) (BufferID, error)

	// DestroyBuffer releases a buffer. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// WriteBuffer uploads data at offset. Ordered with respect to Dispatch.
	WriteBuffer(id BufferID, offset int, data []byte) error

	// Dispatch issues kernel k over its whole domain with bindings b.
	Dispatch(k Kernel, b *Bindings) error

	// Submit blocks until all issued work has completed.
	Submit() error

	// ReadVolume returns the texels of a volume, completing issued work
	// first. Intended for debugging; it stalls the device.
	ReadVolume(id VolumeID) ([]uint32, error)
}

// ProviderAware is implemented by devices that can adopt a GPU device
// shared by an external provider.
type ProviderAware interface {
	SetDeviceProvider(provider any) error
}

// LoggerSetter is implemented by devices that log.
type LoggerSetter interface {
	SetLogger(*slog.Logger)
}
