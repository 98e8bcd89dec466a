package semistaticlights

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.GridResolution != 32 || c.NumCascades != 5 || c.BasePixelSize != 0.0625 {
		t.Errorf("DefaultConfig() = %+v", c)
	}
	if c.CullingMask != math.MaxUint32 {
		t.Errorf("CullingMask = %#x, want all layers", c.CullingMask)
	}
	if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("DefaultConfig without light: Validate() = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Light = NewDirectionalLight(mgl32.Vec3{0, -1, 0})

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no light", func(c *Config) { c.Light = nil }, false},
		{"zero rotation", func(c *Config) { c.Light = &DirectionalLight{} }, false},
		{"zero resolution", func(c *Config) { c.GridResolution = 0 }, false},
		{"negative resolution", func(c *Config) { c.GridResolution = -8 }, false},
		{"odd resolution", func(c *Config) { c.GridResolution = 30 }, false},
		{"huge resolution", func(c *Config) { c.GridResolution = 512 }, false},
		{"min resolution", func(c *Config) { c.GridResolution = 4 }, true},
		{"zero pixel", func(c *Config) { c.BasePixelSize = 0 }, false},
		{"nan pixel", func(c *Config) { c.BasePixelSize = float32(math.NaN()) }, false},
		{"inf pixel", func(c *Config) { c.BasePixelSize = float32(math.Inf(1)) }, false},
		{"no cascades", func(c *Config) { c.NumCascades = 0 }, false},
		{"one cascade", func(c *Config) { c.NumCascades = 1 }, true},
		{"max cascades", func(c *Config) { c.NumCascades = MaxNumCascades }, true},
		{"too many cascades", func(c *Config) { c.NumCascades = 200 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewDirectionalLight(t *testing.T) {
	tests := []mgl32.Vec3{
		{0, 0, 1},
		{0, -1, 0},
		{1, 1, 0},
		{0.3, -0.8, 0.2},
	}
	for _, dir := range tests {
		l := NewDirectionalLight(dir)
		if got := l.Forward(); !vecNear(got, dir.Normalize(), 1e-5) {
			t.Errorf("NewDirectionalLight(%v).Forward() = %v", dir, got)
		}
	}
	if got := NewDirectionalLight(mgl32.Vec3{}).Forward(); got != (mgl32.Vec3{0, 0, 1}) {
		t.Errorf("zero direction Forward() = %v, want +Z", got)
	}
}
