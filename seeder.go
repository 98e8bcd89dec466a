package semistaticlights

import (
	"fmt"

	"github.com/arigo/SemiStaticLights/compute"
)

// cascadeSeeder overwrites the central block of every coarser geometry
// volume with a directional downsample of the level below.
type cascadeSeeder struct {
	dev compute.Device
}

// Seed runs for levels 1..n-1 in ascending order, so each level reads a
// finer level already seeded for orientation o. Level 0 is left as
// rasterized.
func (s cascadeSeeder) Seed(o Orientation, n int, gvs []compute.VolumeID) error {
	dx, dy, dz := o.Axes()
	for i := 1; i < len(gvs); i++ {
		err := s.dev.Dispatch(compute.KernelDirectionalCopy, &compute.Bindings{
			GridResolution: n,
			Input:          gvs[i-1],
			Output:         gvs[i],
			DX:             dx,
			DY:             dy,
			DZ:             dz,
		})
		if err != nil {
			return fmt.Errorf("seed cascade %d along %v: %w", i, o, err)
		}
	}
	return nil
}
