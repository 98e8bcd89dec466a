package semistaticlights

import (
	"fmt"

	"github.com/arigo/SemiStaticLights/compute"
)

// lightPropagator fills the two lighting towers of one orientation, coarsest
// cascade first.
type lightPropagator struct {
	dev compute.Device
}

// Propagate writes every cascade slab of forward and backward. The coarsest
// slab is lit by the ambient colours; each finer slab carries the light of
// the slab above, attenuated by its own geometry volume.
func (p lightPropagator) Propagate(o Orientation, n int, gvs []compute.VolumeID, forward, backward compute.VolumeID, ambientForward, ambientBackward Color) error {
	dx, dy, dz := o.Axes()
	top := len(gvs) - 1
	b := compute.Bindings{
		GridResolution:  n,
		Input:           gvs[top],
		Forward:         forward,
		Backward:        backward,
		DX:              dx,
		DY:              dy,
		DZ:              dz,
		CascadeZIndex:   [4]int32{-1, -1, -1, int32(top * n)}, //nolint:gosec // bounded by MaxGridResolution
		AmbientForward:  ambientForward.Vec4(),
		AmbientBackward: ambientBackward.Vec4(),
	}
	if err := p.dev.Dispatch(compute.KernelPropagateFromAmbient, &b); err != nil {
		return fmt.Errorf("propagate ambient along %v: %w", o, err)
	}

	q := int32(n / 4) //nolint:gosec // bounded by MaxGridResolution
	for i := top - 1; i >= 0; i-- {
		b.Input = gvs[i]
		b.CascadeZIndex = [4]int32{q, q, q + int32((i+1)*n), int32(i * n)} //nolint:gosec // bounded by MaxGridResolution
		if err := p.dev.Dispatch(compute.KernelPropagateFromUpper, &b); err != nil {
			return fmt.Errorf("propagate cascade %d along %v: %w", i, o, err)
		}
	}
	return nil
}
