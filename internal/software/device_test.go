package software

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/volume"
	"github.com/gogpu/gputypes"
)

func newDevice(t *testing.T) *Device {
	t.Helper()
	d := New(2)
	if err := d.Init(); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func geometryDesc(n int) compute.VolumeDesc {
	return compute.VolumeDesc{Label: "gv", Width: n, Height: n, Depth: n, Format: gputypes.TextureFormatR8Unorm}
}

func TestDeviceVolumeLifecycle(t *testing.T) {
	d := newDevice(t)
	id, err := d.CreateVolume(geometryDesc(4))
	if err != nil {
		t.Fatalf("CreateVolume() = %v", err)
	}
	if !d.VolumeValid(id) {
		t.Error("VolumeValid() = false for fresh volume")
	}
	d.DestroyVolume(id)
	if d.VolumeValid(id) {
		t.Error("VolumeValid() = true after DestroyVolume")
	}
	if _, err := d.ReadVolume(id); !errors.Is(err, compute.ErrInvalidVolume) {
		t.Errorf("ReadVolume(destroyed) = %v, want ErrInvalidVolume", err)
	}
}

func TestDeviceRejectsBadDesc(t *testing.T) {
	d := newDevice(t)
	if _, err := d.CreateVolume(compute.VolumeDesc{Width: 0, Height: 1, Depth: 1, Format: gputypes.TextureFormatR8Unorm}); err == nil {
		t.Error("CreateVolume(zero width) succeeded")
	}
	if _, err := d.CreateBuffer(compute.BufferDesc{Size: 0}); err == nil {
		t.Error("CreateBuffer(0) succeeded")
	}
}

func TestDeviceInvalidate(t *testing.T) {
	d := newDevice(t)
	id, _ := d.CreateVolume(geometryDesc(4))
	d.Invalidate()
	if d.VolumeValid(id) {
		t.Error("volume survived Invalidate")
	}
	next, err := d.CreateVolume(geometryDesc(4))
	if err != nil {
		t.Fatalf("CreateVolume after Invalidate: %v", err)
	}
	if next == id {
		t.Error("volume ID reused after Invalidate")
	}
}

func TestDeviceClosed(t *testing.T) {
	d := New(1)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	d.Close()
	if _, err := d.CreateVolume(geometryDesc(4)); !errors.Is(err, compute.ErrDeviceClosed) {
		t.Errorf("CreateVolume after Close = %v, want ErrDeviceClosed", err)
	}
	if err := d.Submit(); !errors.Is(err, compute.ErrDeviceClosed) {
		t.Errorf("Submit after Close = %v, want ErrDeviceClosed", err)
	}
}

func TestDeviceWriteBufferBounds(t *testing.T) {
	d := newDevice(t)
	buf, err := d.CreateBuffer(compute.BufferDesc{Label: "b", Size: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBuffer(buf, 4, make([]byte, 4)); err != nil {
		t.Errorf("WriteBuffer in bounds = %v", err)
	}
	if err := d.WriteBuffer(buf, 6, make([]byte, 4)); err == nil {
		t.Error("WriteBuffer overflow succeeded")
	}
	if err := d.WriteBuffer(compute.BufferID(999), 0, nil); !errors.Is(err, compute.ErrInvalidBuffer) {
		t.Errorf("WriteBuffer(unknown) = %v, want ErrInvalidBuffer", err)
	}
}

func TestDevicePackDispatch(t *testing.T) {
	const n = 8
	d := newDevice(t)
	acc := volume.NewAccumulator(n)
	acc.Deposit(2, 3, 4, 0)
	buf, err := d.CreateBuffer(compute.BufferDesc{Label: "acc", Size: acc.ByteSize()})
	if err != nil {
		t.Fatal(err)
	}
	gv, _ := d.CreateVolume(geometryDesc(n))
	if err := d.WriteBuffer(buf, 0, acc.AppendBytes(nil)); err != nil {
		t.Fatal(err)
	}
	b := &compute.Bindings{GridResolution: n, Accumulation: buf, Output: gv}
	if err := d.Dispatch(compute.KernelPackOpacity, b); err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if err := d.Submit(); err != nil {
		t.Fatal(err)
	}
	texels, err := d.ReadVolume(gv)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range texels {
		want := volume.Transparent
		if i == volume.Index(n, 2, 3, 4) {
			want = 0
		}
		if v != want {
			t.Fatalf("texel %d = %d, want %d", i, v, want)
		}
	}
	if d.Dispatches() != 1 {
		t.Errorf("Dispatches() = %d, want 1", d.Dispatches())
	}
}

func TestDeviceDispatchErrors(t *testing.T) {
	const n = 4
	d := newDevice(t)
	gv, _ := d.CreateVolume(geometryDesc(n))
	tower, _ := d.CreateVolume(compute.VolumeDesc{Label: "t", Width: n, Height: n, Depth: n, Format: gputypes.TextureFormatRGBA8Unorm})

	tests := []struct {
		name string
		k    compute.Kernel
		b    compute.Bindings
		want error
	}{
		{"unknown kernel", compute.Kernel(42), compute.Bindings{GridResolution: n}, compute.ErrUnknownKernel},
		{"missing buffer", compute.KernelPackOpacity, compute.Bindings{GridResolution: n, Output: gv}, compute.ErrInvalidBuffer},
		{"missing input", compute.KernelDirectionalCopy, compute.Bindings{GridResolution: n, Output: gv}, compute.ErrInvalidVolume},
		{"missing tower", compute.KernelPropagateFromAmbient, compute.Bindings{GridResolution: n, Input: gv, Forward: tower}, compute.ErrInvalidVolume},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Dispatch(tt.k, &tt.b); !errors.Is(err, tt.want) {
				t.Errorf("Dispatch() = %v, want %v", err, tt.want)
			}
		})
	}

	// Upper slab beyond a one-cascade tower.
	b := compute.Bindings{GridResolution: n, Input: gv, Forward: tower, Backward: tower, CascadeZIndex: [4]int32{1, 1, 1 + n, 0}}
	if err := d.Dispatch(compute.KernelPropagateFromUpper, &b); err == nil {
		t.Error("Dispatch with upper slab outside tower succeeded")
	}
}

func TestDeviceAccumulatorLayout(t *testing.T) {
	// The pack kernel reads the accumulation buffer as little-endian float32.
	const n = 4
	d := newDevice(t)
	raw := make([]byte, 0, 4*n*n*n)
	for i := 0; i < n*n*n; i++ {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(float32(i%2)))
	}
	buf, _ := d.CreateBuffer(compute.BufferDesc{Size: len(raw)})
	gv, _ := d.CreateVolume(geometryDesc(n))
	_ = d.WriteBuffer(buf, 0, raw)
	if err := d.Dispatch(compute.KernelPackOpacity, &compute.Bindings{GridResolution: n, Accumulation: buf, Output: gv}); err != nil {
		t.Fatal(err)
	}
	texels, _ := d.ReadVolume(gv)
	if texels[0] != 0 || texels[1] != 255 {
		t.Errorf("texels[0:2] = %v, want [0 255]", texels[:2])
	}
}
