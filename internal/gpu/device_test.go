//go:build !nogpu

package gpu

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/software"
	"github.com/arigo/SemiStaticLights/internal/volume"
	"github.com/gogpu/gputypes"
)

func TestDecodeTexels(t *testing.T) {
	raw := []byte{0xFF, 0, 0, 0, 0x01, 0x02, 0x03, 0x04}
	got := decodeTexels(raw)
	want := []uint32{0xFF, 0x04030201}
	if !slices.Equal(got, want) {
		t.Errorf("decodeTexels = %#x, want %#x", got, want)
	}
}

func TestKernelSpecsMatchShaders(t *testing.T) {
	seen := map[compute.Kernel]bool{}
	for _, spec := range kernelSpecs {
		seen[spec.kernel] = true
		if got := strings.Count(spec.source, "@binding("); got != len(spec.bindings) {
			t.Errorf("%s: shader declares %d bindings, layout has %d", spec.kernel, got, len(spec.bindings))
		}
		if spec.bindings[0] != gputypes.BufferBindingTypeUniform {
			t.Errorf("%s: binding 0 is not the params uniform", spec.kernel)
		}
		if got := strings.Count(spec.source, "var<storage, read>"); got != 1 {
			t.Errorf("%s: %d read-only storage bindings, want 1", spec.kernel, got)
		}
	}
	for _, k := range []compute.Kernel{
		compute.KernelPackOpacity, compute.KernelDirectionalCopy,
		compute.KernelPropagateFromAmbient, compute.KernelPropagateFromUpper,
	} {
		if !seen[k] {
			t.Errorf("no pipeline spec for %s", k)
		}
	}
}

func TestUninitializedDevice(t *testing.T) {
	d := NewDevice()
	if _, err := d.CreateVolume(compute.VolumeDesc{Width: 4, Height: 4, Depth: 4, Format: gputypes.TextureFormatR8Unorm}); err == nil {
		t.Error("CreateVolume on an uninitialized device succeeded")
	}
	if d.VolumeValid(1) {
		t.Error("VolumeValid(1) on an uninitialized device")
	}
	d.Close()
	if err := d.Submit(); !errors.Is(err, compute.ErrDeviceClosed) {
		t.Errorf("Submit after Close = %v, want ErrDeviceClosed", err)
	}
}

func TestSetDeviceProviderRejectsNonHAL(t *testing.T) {
	d := NewDevice()
	if err := d.SetDeviceProvider(struct{}{}); err == nil {
		t.Error("SetDeviceProvider accepted a provider without HAL types")
	}
}

// newGPU returns an initialized device or skips the test.
func newGPU(t *testing.T) *Device {
	t.Helper()
	d := NewDevice()
	if err := d.Init(); err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

// runChain executes one pack, one seed and both propagation kernels on dev
// and returns the geometry volumes and towers.
func runChain(t *testing.T, dev compute.Device) [][]uint32 {
	t.Helper()
	const n = 8
	acc := volume.NewAccumulator(n)
	acc.Deposit(4, 4, 4, 0)
	acc.Deposit(2, 5, 1, 0.4)
	acc.Deposit(6, 6, 6, 0.8)

	gvDesc := compute.VolumeDesc{Width: n, Height: n, Depth: n, Format: gputypes.TextureFormatR8Unorm}
	towerDesc := compute.VolumeDesc{Width: n, Height: n, Depth: 2 * n, Format: gputypes.TextureFormatRGBA8Unorm}
	must := func(id compute.VolumeID, err error) compute.VolumeID {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	gv0, gv1 := must(dev.CreateVolume(gvDesc)), must(dev.CreateVolume(gvDesc))
	fwd, bwd := must(dev.CreateVolume(towerDesc)), must(dev.CreateVolume(towerDesc))
	scratch, err := dev.CreateBuffer(compute.BufferDesc{Size: acc.ByteSize()})
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		k compute.Kernel
		b compute.Bindings
	}{
		{compute.KernelPackOpacity, compute.Bindings{GridResolution: n, Accumulation: scratch, Output: gv0}},
		{compute.KernelPackOpacity, compute.Bindings{GridResolution: n, Accumulation: scratch, Output: gv1}},
		{compute.KernelDirectionalCopy, compute.Bindings{
			GridResolution: n, Input: gv0, Output: gv1,
			DX: [3]int32{1, 0, 0}, DY: [3]int32{0, 1, 0}, DZ: [3]int32{0, 0, 1},
		}},
		{compute.KernelPropagateFromAmbient, compute.Bindings{
			GridResolution: n, Input: gv1, Forward: fwd, Backward: bwd,
			DZ: [3]int32{0, 0, 1}, CascadeZIndex: [4]int32{-1, -1, -1, n},
			AmbientForward: [4]float32{1, 0.5, 0.25, 1}, AmbientBackward: [4]float32{0.2, 0.4, 0.6, 1},
		}},
		{compute.KernelPropagateFromUpper, compute.Bindings{
			GridResolution: n, Input: gv0, Forward: fwd, Backward: bwd,
			DZ: [3]int32{0, 0, 1}, CascadeZIndex: [4]int32{n / 4, n / 4, n/4 + n, 0},
		}},
	}
	if err := dev.WriteBuffer(scratch, 0, acc.AppendBytes(nil)); err != nil {
		t.Fatal(err)
	}
	for _, s := range steps {
		if err := dev.Dispatch(s.k, &s.b); err != nil {
			t.Fatalf("Dispatch(%s) = %v", s.k, err)
		}
	}
	if err := dev.Submit(); err != nil {
		t.Fatal(err)
	}

	var out [][]uint32
	for _, id := range []compute.VolumeID{gv0, gv1, fwd, bwd} {
		texels, err := dev.ReadVolume(id)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, texels)
	}
	return out
}

func TestDeviceMatchesSoftware(t *testing.T) {
	gpu := newGPU(t)
	sw := software.New(1)
	if err := sw.Init(); err != nil {
		t.Fatal(err)
	}
	defer sw.Close()

	want := runChain(t, sw)
	got := runChain(t, gpu)
	names := []string{"gv0", "gv1", "forward", "backward"}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("%s differs between GPU and software devices", names[i])
		}
	}
}

func TestDeviceScratchReuseIsOrdered(t *testing.T) {
	d := newGPU(t)
	const n = 4
	gv := func() compute.VolumeID {
		id, err := d.CreateVolume(compute.VolumeDesc{Width: n, Height: n, Depth: n, Format: gputypes.TextureFormatR8Unorm})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	a, b := gv(), gv()
	acc := volume.NewAccumulator(n)
	scratch, err := d.CreateBuffer(compute.BufferDesc{Size: acc.ByteSize()})
	if err != nil {
		t.Fatal(err)
	}

	// Two uploads into the same scratch buffer with a pack between them:
	// the first pack must still see the first upload.
	acc.Deposit(0, 0, 0, 0)
	if err := d.WriteBuffer(scratch, 0, acc.AppendBytes(nil)); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(compute.KernelPackOpacity, &compute.Bindings{GridResolution: n, Accumulation: scratch, Output: a}); err != nil {
		t.Fatal(err)
	}
	acc.Reset()
	if err := d.WriteBuffer(scratch, 0, acc.AppendBytes(nil)); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(compute.KernelPackOpacity, &compute.Bindings{GridResolution: n, Accumulation: scratch, Output: b}); err != nil {
		t.Fatal(err)
	}

	ta, err := d.ReadVolume(a)
	if err != nil {
		t.Fatal(err)
	}
	tb, err := d.ReadVolume(b)
	if err != nil {
		t.Fatal(err)
	}
	if ta[0] != 0 || tb[0] != volume.Transparent {
		t.Errorf("voxel 0: first pack %d (want 0), second pack %d (want 255)", ta[0], tb[0])
	}
}
