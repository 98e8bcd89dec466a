package semistaticlights

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Default configuration values.
const (
	DefaultGridResolution = 32
	DefaultBasePixelSize  = 1.0 / 16
	DefaultNumCascades    = 5

	// MaxGridResolution bounds the per-cascade grid; a 256^3 geometry volume
	// is already 64 MiB of texels.
	MaxGridResolution = 256

	// MaxNumCascades bounds the cascade count; the coarsest cascade spans
	// 2^(MaxNumCascades-1) base voxels.
	MaxNumCascades = 16
)

// ErrInvalidConfig is wrapped by Config.Validate errors.
var ErrInvalidConfig = errors.New("semistaticlights: invalid config")

// Config is the per-recomputation input.
type Config struct {
	// Center is the world position all cascades are centred on.
	Center mgl32.Vec3

	// Light orients the volumes. A nil light disables recomputation.
	Light *DirectionalLight

	// CullingMask selects which occluder layers the rasterizer draws.
	CullingMask uint32

	// GridResolution is the voxel count along each axis of every cascade.
	// Must be a positive multiple of 4.
	GridResolution int

	// BasePixelSize is the voxel edge of cascade 0 in world units; cascade i
	// uses BasePixelSize * 2^i.
	BasePixelSize float32

	// NumCascades is the number of nested cascades.
	NumCascades int
}

// DefaultConfig returns a config with the default grid and every culling
// layer enabled. Light must still be set.
func DefaultConfig() Config {
	return Config{
		CullingMask:    ^uint32(0),
		GridResolution: DefaultGridResolution,
		BasePixelSize:  DefaultBasePixelSize,
		NumCascades:    DefaultNumCascades,
	}
}

// Validate reports why c cannot drive a recomputation, or nil.
func (c Config) Validate() error {
	switch {
	case c.Light == nil:
		return fmt.Errorf("%w: no light", ErrInvalidConfig)
	case c.Light.Rotation.Len() == 0:
		return fmt.Errorf("%w: light rotation is zero", ErrInvalidConfig)
	case c.GridResolution <= 0 || c.GridResolution%4 != 0:
		return fmt.Errorf("%w: grid resolution %d is not a positive multiple of 4", ErrInvalidConfig, c.GridResolution)
	case c.GridResolution > MaxGridResolution:
		return fmt.Errorf("%w: grid resolution %d exceeds %d", ErrInvalidConfig, c.GridResolution, MaxGridResolution)
	case !(c.BasePixelSize > 0) || math32.IsInf(c.BasePixelSize, 1):
		return fmt.Errorf("%w: pixel size %v", ErrInvalidConfig, c.BasePixelSize)
	case c.NumCascades <= 0:
		return fmt.Errorf("%w: %d cascades", ErrInvalidConfig, c.NumCascades)
	case c.NumCascades > MaxNumCascades:
		return fmt.Errorf("%w: %d cascades exceeds %d", ErrInvalidConfig, c.NumCascades, MaxNumCascades)
	}
	return nil
}
