package semistaticlights

import (
	"context"
	"fmt"

	"github.com/arigo/SemiStaticLights/compute"
	"github.com/arigo/SemiStaticLights/internal/volume"
)

// geometryVolumeBuilder rasterizes occluders into the per-cascade geometry
// volumes. One host accumulation grid and one device scratch buffer are
// shared by all cascades.
type geometryVolumeBuilder struct {
	dev     compute.Device
	acc     *volume.Accumulator
	scratch compute.BufferID
	upload  []byte
}

// BuildCascade overwrites gv with the transmittance of cascade c: the
// accumulation grid is reset to 1, the rasterizer draws the three poses into
// it and the pack kernel quantizes it into gv.
func (b *geometryVolumeBuilder) BuildCascade(ctx context.Context, r VoxelRasterizer, c Cascade, mask uint32, gv compute.VolumeID) error {
	b.acc.Reset()
	for _, pose := range rasterPoses {
		if err := r.Rasterize(ctx, c.rasterView(pose, mask), b.acc); err != nil {
			return fmt.Errorf("rasterize cascade %d pose %v: %w", c.Index, pose, err)
		}
	}

	b.upload = b.acc.AppendBytes(b.upload[:0])
	if err := b.dev.WriteBuffer(b.scratch, 0, b.upload); err != nil {
		return fmt.Errorf("upload cascade %d: %w", c.Index, err)
	}
	return b.dev.Dispatch(compute.KernelPackOpacity, &compute.Bindings{
		GridResolution: c.Resolution,
		Accumulation:   b.scratch,
		Output:         gv,
	})
}
