// Package software implements compute.Device on the CPU.
//
// Volumes live in host memory as []uint32 and each dispatch is split into
// z slabs executed on an internal/parallel WorkerPool. Work runs eagerly, so
// issue order is execution order and Submit has nothing to wait for.
package software

import (
	"fmt"
	"sync"

	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/kernels"
	"github.com/arigo/SemiStaticLights/internal/parallel"
)

type hostVolume struct {
	desc   compute.VolumeDesc
	texels []uint32
}

// Device is the CPU compute device.
type Device struct {
	mu sync.Mutex

	workers int
	pool    *parallel.WorkerPool

	nextID  uint64
	volumes map[compute.VolumeID]*hostVolume
	buffers map[compute.BufferID][]byte

	dispatches uint64
	closed     bool
}

var _ compute.Device = (*Device)(nil)

// New returns a software device running on the given number of workers
// (GOMAXPROCS when workers <= 0). Init must be called before use.
func New(workers int) *Device {
	return &Device{workers: workers}
}

// Name returns "software".
func (d *Device) Name() string { return "software" }

// Init starts the worker pool.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		return nil
	}
	d.pool = parallel.NewWorkerPool(d.workers)
	d.volumes = make(map[compute.VolumeID]*hostVolume)
	d.buffers = make(map[compute.BufferID][]byte)
	d.closed = false
	return nil
}

// Close releases every volume and buffer and stops the pool.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	d.volumes = nil
	d.buffers = nil
	d.closed = true
}

// Invalidate drops every resource as a GPU device reset would. Handles held
// by callers stop being valid.
func (d *Device) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.volumes)
	clear(d.buffers)
}

// Dispatches returns the number of kernels executed so far.
func (d *Device) Dispatches() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatches
}

func (d *Device) ready() error {
	if d.closed || d.pool == nil {
		return compute.ErrDeviceClosed
	}
	return nil
}

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// CreateVolume allocates a zeroed volume.
func (d *Device) CreateVolume(desc compute.VolumeDesc) (compute.VolumeID, error) {
	if err := desc.Validate(); err != nil {
		return compute.InvalidID, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return compute.InvalidID, err
	}
	id := compute.VolumeID(d.newID())
	d.volumes[id] = &hostVolume{desc: desc, texels: make([]uint32, desc.Texels())}
	return id, nil
}

// DestroyVolume releases a volume.
func (d *Device) DestroyVolume(id compute.VolumeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.volumes, id)
}

// VolumeValid reports whether id is live.
func (d *Device) VolumeValid(id compute.VolumeID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.volumes[id]
	return ok
}

// CreateBuffer allocates a zeroed buffer.
func (d *Device) CreateBuffer(desc compute.BufferDesc) (compute.BufferID, error) {
	if desc.Size <= 0 {
		return compute.InvalidID, fmt.Errorf("software: buffer %q has invalid size %d", desc.Label, desc.Size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return compute.InvalidID, err
	}
	id := compute.BufferID(d.newID())
	d.buffers[id] = make([]byte, desc.Size)
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id compute.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// WriteBuffer copies data into the buffer at offset.
func (d *Device) WriteBuffer(id compute.BufferID, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	buf, ok := d.buffers[id]
	if !ok {
		return compute.ErrInvalidBuffer
	}
	if offset < 0 || offset+len(data) > len(buf) {
		return fmt.Errorf("software: write of %d bytes at %d overflows buffer of %d", len(data), offset, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

// Dispatch runs kernel k to completion.
func (d *Device) Dispatch(k compute.Kernel, b *compute.Bindings) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}

	p := b.Params()
	n := b.GridResolution
	var run func(z0, z1 int)

	switch k {
	case compute.KernelPackOpacity:
		accum, ok := d.buffers[b.Accumulation]
		if !ok {
			return fmt.Errorf("software: %s accumulation: %w", k, compute.ErrInvalidBuffer)
		}
		out, err := d.volume(k, b.Output, n*n*n)
		if err != nil {
			return err
		}
		if len(accum) < 4*n*n*n {
			return fmt.Errorf("software: %s: accumulation buffer too small", k)
		}
		run = func(z0, z1 int) { kernels.PackOpacity(&p, accum, out, z0, z1) }

	case compute.KernelDirectionalCopy:
		in, err := d.volume(k, b.Input, n*n*n)
		if err != nil {
			return err
		}
		out, err := d.volume(k, b.Output, n*n*n)
		if err != nil {
			return err
		}
		run = func(z0, z1 int) { kernels.DirectionalCopy(&p, in, out, z0, z1) }

	case compute.KernelPropagateFromAmbient, compute.KernelPropagateFromUpper:
		gv, err := d.volume(k, b.Input, n*n*n)
		if err != nil {
			return err
		}
		slab := int(b.CascadeZIndex[3])
		fwd, err := d.volume(k, b.Forward, n*n*(slab+n))
		if err != nil {
			return err
		}
		bwd, err := d.volume(k, b.Backward, n*n*(slab+n))
		if err != nil {
			return err
		}
		if k == compute.KernelPropagateFromAmbient {
			run = func(z0, z1 int) { kernels.PropagateFromAmbient(&p, gv, fwd, bwd, z0, z1) }
		} else {
			// Upstream reads reach at most half a grid plus one voxel past the offset.
			if len(fwd) < n*n*(int(b.CascadeZIndex[2])+n/2+1) {
				return fmt.Errorf("software: %s: upper slab outside tower", k)
			}
			run = func(z0, z1 int) { kernels.PropagateFromUpper(&p, gv, fwd, bwd, z0, z1) }
		}

	default:
		return fmt.Errorf("software: %w: %v", compute.ErrUnknownKernel, k)
	}

	d.pool.Range(k.Domain(n), run)
	d.dispatches++
	return nil
}

// volume resolves id and checks it holds at least size texels.
func (d *Device) volume(k compute.Kernel, id compute.VolumeID, size int) ([]uint32, error) {
	v, ok := d.volumes[id]
	if !ok {
		return nil, fmt.Errorf("software: %s: %w (id %d)", k, compute.ErrInvalidVolume, id)
	}
	if len(v.texels) < size {
		return nil, fmt.Errorf("software: %s: volume %q has %d texels, need %d", k, v.desc.Label, len(v.texels), size)
	}
	return v.texels, nil
}

// Submit is a no-op: dispatches complete before they return.
func (d *Device) Submit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready()
}

// ReadVolume returns a copy of the volume's texels.
func (d *Device) ReadVolume(id compute.VolumeID) ([]uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}
	v, ok := d.volumes[id]
	if !ok {
		return nil, compute.ErrInvalidVolume
	}
	out := make([]uint32, len(v.texels))
	copy(out, v.texels)
	return out, nil
}
