//go:build !nogpu

// Package gpu implements compute.Device with wgpu/hal compute shaders.
//
// Volumes are storage buffers of one u32 per texel. Dispatches are recorded
// and encoded into a single command buffer, one compute pass per dispatch,
// when Submit, ReadVolume or a buffer write needs the work to be complete.
// Consecutive passes see each other's storage writes.
package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/kernels"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// fenceTimeout is the maximum time to wait for GPU work to complete.
const fenceTimeout = 5 * time.Second

var errNotInitialized = errors.New("gpu: device not initialized")

// storage is a device buffer backing a volume or a linear buffer.
type storage struct {
	label string
	buf   hal.Buffer
	size  uint64
}

// pendingDispatch is a recorded dispatch waiting for the next flush. The
// uniform buffer and bind group are destroyed once it has executed.
type pendingDispatch struct {
	kernel  compute.Kernel
	groups  uint32
	uniform hal.Buffer
	group   hal.BindGroup
}

// Device runs the pipeline kernels on a wgpu/hal device, either its own
// Vulkan device or one shared through SetDeviceProvider.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	externalDevice bool // true when using shared device (don't destroy on Close)
	ready          bool
	closed         bool
	adapter        string

	pipelines map[compute.Kernel]*kernelPipeline

	nextID  uint64
	volumes map[compute.VolumeID]*storage
	buffers map[compute.BufferID]*storage

	pending []pendingDispatch
}

var (
	_ compute.Device        = (*Device)(nil)
	_ compute.ProviderAware = (*Device)(nil)
	_ compute.LoggerSetter  = (*Device)(nil)
)

// NewDevice returns an uninitialized GPU device.
func NewDevice() *Device {
	return &Device{}
}

// Name returns "wgpu".
func (d *Device) Name() string { return "wgpu" }

// Adapter returns the name of the adapter in use, or "" for a shared device.
func (d *Device) Adapter() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adapter
}

// SetLogger sets the package logger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Init opens a Vulkan device and compiles the kernels.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	if err := d.initGPU(); err != nil {
		d.teardown()
		return fmt.Errorf("gpu: %w", err)
	}
	return nil
}

func (d *Device) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	d.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	d.device = openDev.Device
	d.queue = openDev.Queue
	if err := d.createPipelines(); err != nil {
		return fmt.Errorf("create pipelines: %w", err)
	}
	d.resetResources()
	d.adapter = selected.Info.Name
	d.ready = true
	d.closed = false
	slogger().Info("gpu: compute device initialized", "adapter", d.adapter)
	return nil
}

// Close releases every volume and buffer, the kernels and, unless shared,
// the device itself.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardown()
	d.closed = true
}

func (d *Device) teardown() {
	d.releaseResources()
	d.destroyPipelines()
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.instance = nil
	d.queue = nil
	d.ready = false
	d.externalDevice = false
	d.adapter = ""
}

// SetDeviceProvider switches to a GPU device shared by an external provider
// (e.g., gogpu). The provider must implement HalDevice() any and HalQueue()
// any returning hal.Device and hal.Queue.
//
// Every volume and buffer created so far becomes invalid.
func (d *Device) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.teardown()
	d.device = device
	d.queue = queue
	d.externalDevice = true

	if err := d.createPipelines(); err != nil {
		d.ready = false
		return fmt.Errorf("gpu: create pipelines with shared device: %w", err)
	}
	d.resetResources()
	d.ready = true
	d.closed = false
	slogger().Info("gpu: switched to shared GPU device")
	return nil
}

func (d *Device) resetResources() {
	d.volumes = make(map[compute.VolumeID]*storage)
	d.buffers = make(map[compute.BufferID]*storage)
}

// releaseResources drops pending work and destroys every volume and buffer.
func (d *Device) releaseResources() {
	d.destroyPending()
	if d.device != nil {
		for _, s := range d.volumes {
			d.device.DestroyBuffer(s.buf)
		}
		for _, s := range d.buffers {
			d.device.DestroyBuffer(s.buf)
		}
	}
	d.volumes = nil
	d.buffers = nil
}

func (d *Device) check() error {
	switch {
	case d.closed:
		return compute.ErrDeviceClosed
	case !d.ready:
		return errNotInitialized
	}
	return nil
}

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) createStorage(label string, size uint64, usage gputypes.BufferUsage) (*storage, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %q: %w", label, err)
	}
	return &storage{label: label, buf: buf, size: size}, nil
}

// CreateVolume allocates a zero-filled volume.
func (d *Device) CreateVolume(desc compute.VolumeDesc) (compute.VolumeID, error) {
	if err := desc.Validate(); err != nil {
		return compute.InvalidID, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return compute.InvalidID, err
	}
	size := uint64(texelBytes(desc.Texels()))
	s, err := d.createStorage(desc.Label, size,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return compute.InvalidID, err
	}
	d.queue.WriteBuffer(s.buf, 0, make([]byte, size))
	id := compute.VolumeID(d.newID())
	d.volumes[id] = s
	slogger().Debug("gpu: volume created", "label", desc.Label,
		"size", fmt.Sprintf("%dx%dx%d", desc.Width, desc.Height, desc.Depth), "bytes", size)
	return id, nil
}

// DestroyVolume releases a volume after pending work that may use it.
func (d *Device) DestroyVolume(id compute.VolumeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.volumes[id]
	if !ok {
		return
	}
	d.flushOrLog()
	d.device.DestroyBuffer(s.buf)
	delete(d.volumes, id)
}

// VolumeValid reports whether id is live on the current device.
func (d *Device) VolumeValid(id compute.VolumeID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.volumes[id]
	return ok
}

// CreateBuffer allocates a storage buffer.
func (d *Device) CreateBuffer(desc compute.BufferDesc) (compute.BufferID, error) {
	if desc.Size <= 0 {
		return compute.InvalidID, fmt.Errorf("gpu: buffer %q has invalid size %d", desc.Label, desc.Size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return compute.InvalidID, err
	}
	s, err := d.createStorage(desc.Label, uint64(desc.Size),
		desc.Usage|gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return compute.InvalidID, err
	}
	id := compute.BufferID(d.newID())
	d.buffers[id] = s
	return id, nil
}

// DestroyBuffer releases a buffer after pending work that may use it.
func (d *Device) DestroyBuffer(id compute.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.buffers[id]
	if !ok {
		return
	}
	d.flushOrLog()
	d.device.DestroyBuffer(s.buf)
	delete(d.buffers, id)
}

// WriteBuffer uploads data at offset. Queue writes land before the next
// submission, so recorded dispatches are flushed first to keep them reading
// the previous contents.
func (d *Device) WriteBuffer(id compute.BufferID, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	s, ok := d.buffers[id]
	if !ok {
		return compute.ErrInvalidBuffer
	}
	if offset < 0 || uint64(offset+len(data)) > s.size {
		return fmt.Errorf("gpu: write of %d bytes at %d overflows buffer %q of %d", len(data), offset, s.label, s.size)
	}
	if err := d.flushLocked(); err != nil {
		return err
	}
	d.queue.WriteBuffer(s.buf, uint64(offset), data)
	return nil
}

// Dispatch records kernel k. It runs on the next flush.
func (d *Device) Dispatch(k compute.Kernel, b *compute.Bindings) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	kp, ok := d.pipelines[k]
	if !ok {
		return fmt.Errorf("gpu: %w: %v", compute.ErrUnknownKernel, k)
	}

	resources, err := d.kernelResources(k, b)
	if err != nil {
		return err
	}

	p := b.Params()
	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: k.String() + "_params", Size: kernels.ParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: %s: create uniform buffer: %w", k, err)
	}
	d.queue.WriteBuffer(ub, 0, p.Bytes())

	entries := make([]gputypes.BindGroupEntry, 0, len(resources)+1)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: kernels.ParamsSize},
	})
	for i, s := range resources {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1), //nolint:gosec // at most four bindings
			Resource: gputypes.BufferBinding{Buffer: s.buf.NativeHandle(), Offset: 0, Size: s.size},
		})
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: k.String() + "_bind", Layout: kp.bindLayout, Entries: entries,
	})
	if err != nil {
		d.device.DestroyBuffer(ub)
		return fmt.Errorf("gpu: %s: create bind group: %w", k, err)
	}

	d.pending = append(d.pending, pendingDispatch{
		kernel:  k,
		groups:  kernels.Groups(k.Domain(b.GridResolution)),
		uniform: ub,
		group:   bg,
	})
	return nil
}

// kernelResources resolves the storage bound at bindings 1.. of kernel k
// and checks their sizes.
func (d *Device) kernelResources(k compute.Kernel, b *compute.Bindings) ([]*storage, error) {
	n := b.GridResolution
	grid := texelBytes(n * n * n)
	switch k {
	case compute.KernelPackOpacity:
		accum, ok := d.buffers[b.Accumulation]
		if !ok {
			return nil, fmt.Errorf("gpu: %s accumulation: %w", k, compute.ErrInvalidBuffer)
		}
		if accum.size < uint64(grid) {
			return nil, fmt.Errorf("gpu: %s: accumulation buffer too small", k)
		}
		out, err := d.volume(k, b.Output, grid)
		if err != nil {
			return nil, err
		}
		return []*storage{accum, out}, nil

	case compute.KernelDirectionalCopy:
		in, err := d.volume(k, b.Input, grid)
		if err != nil {
			return nil, err
		}
		out, err := d.volume(k, b.Output, grid)
		if err != nil {
			return nil, err
		}
		return []*storage{in, out}, nil

	case compute.KernelPropagateFromAmbient, compute.KernelPropagateFromUpper:
		need := int(b.CascadeZIndex[3]) + n
		if k == compute.KernelPropagateFromUpper {
			need = max(need, int(b.CascadeZIndex[2])+n/2+1)
		}
		gv, err := d.volume(k, b.Input, grid)
		if err != nil {
			return nil, err
		}
		fwd, err := d.volume(k, b.Forward, texelBytes(n*n*need))
		if err != nil {
			return nil, err
		}
		bwd, err := d.volume(k, b.Backward, texelBytes(n*n*need))
		if err != nil {
			return nil, err
		}
		return []*storage{gv, fwd, bwd}, nil
	}
	return nil, fmt.Errorf("gpu: %w: %v", compute.ErrUnknownKernel, k)
}

func (d *Device) volume(k compute.Kernel, id compute.VolumeID, size int) (*storage, error) {
	s, ok := d.volumes[id]
	if !ok {
		return nil, fmt.Errorf("gpu: %s: %w (id %d)", k, compute.ErrInvalidVolume, id)
	}
	if s.size < uint64(size) {
		return nil, fmt.Errorf("gpu: %s: volume %q has %d bytes, need %d", k, s.label, s.size, size)
	}
	return s, nil
}

// Submit executes every recorded dispatch and waits for completion.
func (d *Device) Submit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return d.flushLocked()
}

func (d *Device) flushOrLog() {
	if err := d.flushLocked(); err != nil {
		slogger().Warn("gpu: flush before destroy failed", "err", err)
	}
}

// flushLocked encodes the recorded dispatches, one compute pass each, into
// a single command buffer, submits it and waits. Pending dispatches are
// dropped even on failure.
func (d *Device) flushLocked() error {
	if len(d.pending) == 0 {
		return nil
	}
	defer d.destroyPending()

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "light_bounces"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("light_bounces"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	for _, p := range d.pending {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.kernel.String()})
		pass.SetPipeline(d.pipelines[p.kernel].pipeline)
		pass.SetBindGroup(0, p.group, nil)
		pass.Dispatch(p.groups, p.groups, p.groups)
		pass.End()
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait(cmdBuf); err != nil {
		return err
	}
	slogger().Debug("gpu: dispatches completed", "count", len(d.pending))
	return nil
}

func (d *Device) destroyPending() {
	if d.device != nil {
		for _, p := range d.pending {
			d.device.DestroyBindGroup(p.group)
			d.device.DestroyBuffer(p.uniform)
		}
	}
	d.pending = d.pending[:0]
}

func (d *Device) submitAndWait(cmdBuf hal.CommandBuffer) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("gpu: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("gpu: GPU timeout after %v", fenceTimeout)
	}
	return nil
}

// ReadVolume copies a volume into a staging buffer and reads it back.
func (d *Device) ReadVolume(id compute.VolumeID) ([]uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	s, ok := d.volumes[id]
	if !ok {
		return nil, compute.ErrInvalidVolume
	}
	if err := d.flushLocked(); err != nil {
		return nil, err
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: s.label + "_staging", Size: s.size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(s.buf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: s.size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait(cmdBuf); err != nil {
		return nil, err
	}
	raw := make([]byte, s.size)
	if err := d.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("gpu: readback: %w", err)
	}
	return decodeTexels(raw), nil
}

// texelBytes is the byte size of count u32 texels.
func texelBytes(count int) int { return 4 * count }

// decodeTexels converts little-endian bytes into texels.
func decodeTexels(raw []byte) []uint32 {
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return out
}
