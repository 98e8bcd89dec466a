package semistaticlights

import (
	"errors"
	"sync"

	"github.com/arigo/SemiStaticLights/compute"
)

var (
	deviceMu sync.RWMutex
	device   compute.Device
)

// RegisterDevice registers the default compute device for pipelines created
// without WithDevice.
//
// Only one device can be registered. Subsequent calls replace the previous
// one, which is closed. The device's Init method is called during
// registration; if it fails, the device is not registered.
//
// GPU devices register themselves from an init function:
//
//	import _ "github.com/arigo/SemiStaticLights/gpu" // enables the wgpu device
//
// When nothing is registered, pipelines use the software device.
func RegisterDevice(d compute.Device) error {
	if d == nil {
		return errors.New("semistaticlights: device must not be nil")
	}
	if err := d.Init(); err != nil {
		return err
	}
	propagateLogger(d, Logger())

	deviceMu.Lock()
	old := device
	device = d
	deviceMu.Unlock()
	if old != nil && old != d {
		old.Close()
	}
	return nil
}

// RegisteredDevice returns the registered device, or nil if none.
func RegisteredDevice() compute.Device {
	deviceMu.RLock()
	d := device
	deviceMu.RUnlock()
	return d
}

// SetDeviceProvider hands an external GPU device provider (typically a
// gpucontext.DeviceProvider that also exposes HAL handles) to the registered
// device so it reuses that device instead of opening its own. No-op when no
// device is registered or it cannot share devices.
//
// Switching devices invalidates every volume the device handed out; running
// pipelines reallocate on their next recomputation.
func SetDeviceProvider(provider any) error {
	d := RegisteredDevice()
	if d == nil {
		return nil
	}
	if pa, ok := d.(compute.ProviderAware); ok {
		return pa.SetDeviceProvider(provider)
	}
	return nil
}
