// Package compute defines the device abstraction the light-bounce pipeline
// dispatches its kernels on.
//
// A [Device] owns volumes and buffers behind opaque IDs and executes the four
// pipeline kernels with an explicit [Bindings] value per dispatch. Two
// implementations exist in this module:
//   - the software device (internal/software), always available, which runs
//     the CPU reference kernels on a work-stealing pool;
//   - the wgpu device (internal/gpu), registered by importing
//     github.com/arigo/SemiStaticLights/gpu, which runs the WGSL kernels
//     through wgpu/hal.
//
//	               +------------------+
//	               |     Pipeline     |
//	               +--------+---------+
//	                        | Dispatch(kernel, *Bindings)
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| software device |          |   wgpu device   |
//	|  (CPU kernels)  |          |  (hal.Device)   |
//	+-----------------+          +-----------------+
//
// # Ordering
//
// WriteBuffer and Dispatch calls execute in issue order. Submit blocks until
// everything issued so far has completed. Results are only observable
// through ReadVolume, which is intended for debugging.
//
// # Resource loss
//
// A device may invalidate volumes it handed out (device reset, provider
// switch). Callers detect this with VolumeValid and reallocate.
package compute
