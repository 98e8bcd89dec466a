// Package semistaticlights computes approximate indirect lighting for a
// scene lit by one directional light, as cascaded light volumes that can be
// refreshed every few frames around a moving point.
//
// # Overview
//
// Around a centre point, NumCascades nested cubic grids ("cascades") are
// aligned with the light. Cascade i has voxels 2^i times larger than
// cascade 0, so each level covers twice the extent of the one inside it.
// A recomputation:
//
//  1. Rasterizes the occluders into a geometry volume per cascade holding
//     8-bit transmittance (1 = clear, 0 = opaque), from three orthographic
//     poses.
//  2. For each of the three light-local axes, seeds the centre of every
//     coarser geometry volume from the level below, combining only voxels
//     aligned with that axis.
//  3. Propagates ambient light from the coarsest cascade down to the finest,
//     forward and backward along that axis, into packed RGB "lighting
//     towers" (one per direction, six in total).
//
// # Quick Start
//
//	p, err := semistaticlights.New(
//	    semistaticlights.StaticProjector(rasterizer),
//	    semistaticlights.ConstantAmbient{R: 0.4, G: 0.45, B: 0.5},
//	)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	cfg := semistaticlights.DefaultConfig()
//	cfg.Light = semistaticlights.NewDirectionalLight(mgl32.Vec3{0.3, -1, 0.2})
//	cfg.Center = cameraPosition
//	if err := p.ComputeLightBounces(ctx, cfg); err != nil {
//	    return err
//	}
//	out, _ := p.Output()
//
// The voxelize package provides a CPU VoxelRasterizer for triangle meshes.
//
// # Devices
//
// Kernels run on a compute.Device. Without further setup a software device
// is used. Importing the gpu package registers a wgpu/hal device instead:
//
//	import _ "github.com/arigo/SemiStaticLights/gpu"
//
// # Shading
//
// Output carries, per view ray, the tower volume and its world direction,
// plus ShadingParams describing how a world position maps to a cascade and a
// tower coordinate. Output.Sample is the CPU reference of that lookup.
//
// # Logging
//
// The package is silent by default; see SetLogger.
package semistaticlights
