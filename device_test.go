package semistaticlights

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/arigo/SemiStaticLights/internal/software"
)

// mockDevice is a software device that records registry interactions.
type mockDevice struct {
	*software.Device
	name     string
	initErr  error
	closed   bool
	logger   *slog.Logger
	provider any
}

func newMockDevice(name string) *mockDevice {
	return &mockDevice{Device: software.New(1), name: name}
}

func (m *mockDevice) Name() string { return m.name }

func (m *mockDevice) Init() error {
	if m.initErr != nil {
		return m.initErr
	}
	return m.Device.Init()
}

func (m *mockDevice) Close() {
	m.closed = true
	m.Device.Close()
}

func (m *mockDevice) SetLogger(l *slog.Logger) { m.logger = l }

func (m *mockDevice) SetDeviceProvider(p any) error {
	m.provider = p
	m.Device.Invalidate()
	return nil
}

func resetDevice() {
	deviceMu.Lock()
	old := device
	device = nil
	deviceMu.Unlock()
	if old != nil {
		old.Close()
	}
}

func TestRegisterDevice(t *testing.T) {
	t.Cleanup(resetDevice)
	resetDevice()

	if RegisteredDevice() != nil {
		t.Fatal("RegisteredDevice() != nil after reset")
	}
	a := newMockDevice("a")
	if err := RegisterDevice(a); err != nil {
		t.Fatalf("RegisterDevice(a) = %v", err)
	}
	if RegisteredDevice() != a {
		t.Error("RegisteredDevice() did not return a")
	}

	b := newMockDevice("b")
	if err := RegisterDevice(b); err != nil {
		t.Fatalf("RegisterDevice(b) = %v", err)
	}
	if !a.closed {
		t.Error("replaced device was not closed")
	}
	if RegisteredDevice() != b {
		t.Error("RegisteredDevice() did not return b")
	}
}

func TestRegisterDeviceErrors(t *testing.T) {
	t.Cleanup(resetDevice)
	resetDevice()

	if err := RegisterDevice(nil); err == nil {
		t.Error("RegisterDevice(nil) succeeded")
	}
	bad := newMockDevice("bad")
	bad.initErr = errors.New("no adapter")
	if err := RegisterDevice(bad); !errors.Is(err, bad.initErr) {
		t.Errorf("RegisterDevice(bad) = %v, want init error", err)
	}
	if RegisteredDevice() != nil {
		t.Error("device registered despite Init failure")
	}
}

func TestSetDeviceProvider(t *testing.T) {
	t.Cleanup(resetDevice)
	resetDevice()

	if err := SetDeviceProvider("anything"); err != nil {
		t.Errorf("SetDeviceProvider without device = %v, want nil", err)
	}

	m := newMockDevice("shared")
	if err := RegisterDevice(m); err != nil {
		t.Fatal(err)
	}
	if err := SetDeviceProvider("provider"); err != nil {
		t.Fatalf("SetDeviceProvider() = %v", err)
	}
	if m.provider != "provider" {
		t.Errorf("provider = %v, want %q", m.provider, "provider")
	}
}
