//go:build !nogpu

// Package gpu registers the wgpu compute device.
//
// Import this package to run the light-bounce kernels as wgpu/hal compute
// shaders instead of on the CPU:
//
//	import _ "github.com/arigo/SemiStaticLights/gpu"
//
// If GPU initialization fails (no Vulkan device available), registration is
// skipped with a warning and pipelines use the software device.
package gpu

import (
	semistaticlights "github.com/arigo/SemiStaticLights"
	gpuimpl "github.com/arigo/SemiStaticLights/internal/gpu"
)

func init() {
	if err := semistaticlights.RegisterDevice(gpuimpl.NewDevice()); err != nil {
		semistaticlights.Logger().Warn("GPU compute device not available", "err", err)
	}
}

// SetDeviceProvider makes the registered device share the GPU device of an
// external provider (e.g., gogpu) instead of opening its own.
//
// The provider should be a gpucontext.DeviceProvider that also implements
// gpucontext.HalProvider for direct HAL access.
func SetDeviceProvider(provider any) error {
	return semistaticlights.SetDeviceProvider(provider)
}
