package semistaticlights

import (
	"testing"

	"github.com/arigo/SemiStaticLights/internal/software"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.device != nil || o.provider != nil || o.workers != 0 || o.debugReadback {
		t.Errorf("defaultOptions() = %+v, want zero", o)
	}
}

func TestOptions(t *testing.T) {
	dev := software.New(1)
	o := defaultOptions()
	for _, opt := range []Option{WithDevice(dev), WithWorkers(3), WithDebugReadback(true), WithDeviceProvider(nil)} {
		opt(&o)
	}
	if o.device != dev {
		t.Error("WithDevice did not set the device")
	}
	if o.workers != 3 {
		t.Errorf("workers = %d, want 3", o.workers)
	}
	if !o.debugReadback {
		t.Error("WithDebugReadback(true) not applied")
	}
	if o.provider != nil {
		t.Error("WithDeviceProvider(nil) set a provider")
	}
}
