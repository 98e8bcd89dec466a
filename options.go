package semistaticlights

import (
	"github.com/arigo/SemiStaticLights/compute"
	"github.com/gogpu/gpucontext"
)

// Option configures a Pipeline during creation.
//
// Example:
//
//	// Software device with 4 workers
//	p, err := semistaticlights.New(projector, ambient, semistaticlights.WithWorkers(4))
//
//	// Explicit device (dependency injection)
//	p, err := semistaticlights.New(projector, ambient, semistaticlights.WithDevice(dev))
type Option func(*options)

type options struct {
	device        compute.Device
	provider      gpucontext.DeviceProvider
	workers       int
	debugReadback bool
}

func defaultOptions() options {
	return options{}
}

// WithDevice makes the pipeline run on d instead of the registered device.
// The pipeline calls d.Init and closes d on Close.
func WithDevice(d compute.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithDeviceProvider shares the GPU device of an external provider (for
// example a gogpu window) with the pipeline's device, if that device can
// adopt it.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithWorkers sets the worker count of the software device the pipeline
// creates when no device is registered. 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithDebugReadback enables ReadGeometryVolume and ReadTower. Read-back
// stalls the device and is meant for debugging tools only.
func WithDebugReadback(enabled bool) Option {
	return func(o *options) {
		o.debugReadback = enabled
	}
}
