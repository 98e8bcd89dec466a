package semistaticlights

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testConfig(n, cascades int) Config {
	cfg := DefaultConfig()
	cfg.GridResolution = n
	cfg.NumCascades = cascades
	cfg.BasePixelSize = 0.25
	cfg.Center = mgl32.Vec3{3, -1, 7}
	cfg.Light = NewDirectionalLight(mgl32.Vec3{0.2, -1, 0.4})
	return cfg
}

func TestCascadeSizes(t *testing.T) {
	cs := newCascades(testConfig(8, 4))
	if len(cs) != 4 {
		t.Fatalf("len = %d, want 4", len(cs))
	}
	for i, c := range cs {
		wantPS := 0.25 * float32(int(1)<<i)
		if c.PixelSize != wantPS {
			t.Errorf("cascade %d PixelSize = %v, want %v", i, c.PixelSize, wantPS)
		}
		if c.HalfExtent != 4*wantPS {
			t.Errorf("cascade %d HalfExtent = %v, want %v", i, c.HalfExtent, 4*wantPS)
		}
		if i > 0 && c.HalfExtent != 2*cs[i-1].HalfExtent {
			t.Errorf("cascade %d is not twice cascade %d", i, i-1)
		}
	}
}

// Every point inside cascade i is inside cascade i+1, and the centre block of
// cascade i+1 is exactly cascade i.
func TestCascadeContainment(t *testing.T) {
	cs := newCascades(testConfig(8, 3))
	for i := 0; i+1 < len(cs); i++ {
		fine, coarse := cs[i], cs[i+1]
		for _, corner := range []mgl32.Vec3{{-0.5, -0.5, -0.5}, {0.5, 0.5, 0.5}, {0.5, -0.5, 0.25}} {
			world := fine.WorldToLocal().Inv().Mul4x1(corner.Mul(0.999).Vec4(1)).Vec3()
			if !coarse.Contains(world) {
				t.Errorf("corner %v of cascade %d outside cascade %d", corner, i, i+1)
			}
			v := coarse.WorldToVoxel().Mul4x1(world.Vec4(1)).Vec3()
			for a := 0; a < 3; a++ {
				if v[a] < 2-1e-3 || v[a] > 6+1e-3 {
					t.Errorf("corner %v maps to coarse voxel %v, outside central block", corner, v)
				}
			}
		}
	}
}

func TestCascadeVoxelMapping(t *testing.T) {
	c := newCascades(testConfig(8, 1))[0]
	w2v := c.WorldToVoxel()
	for _, xyz := range [][3]int{{0, 0, 0}, {7, 7, 7}, {3, 5, 1}} {
		p := c.VoxelCenter(xyz[0], xyz[1], xyz[2])
		v := w2v.Mul4x1(p.Vec4(1)).Vec3()
		want := mgl32.Vec3{float32(xyz[0]) + 0.5, float32(xyz[1]) + 0.5, float32(xyz[2]) + 0.5}
		if !vecNear(v, want, 1e-4) {
			t.Errorf("voxel %v centre maps to %v", xyz, v)
		}
	}
	if got := w2v.Mul4x1(c.Center.Vec4(1)).Vec3(); !vecNear(got, mgl32.Vec3{4, 4, 4}, 1e-4) {
		t.Errorf("centre maps to %v, want (4,4,4)", got)
	}
}

func TestCascadeLightLocalAxes(t *testing.T) {
	cfg := testConfig(8, 1)
	c := newCascades(cfg)[0]
	fwd := cfg.Light.Forward()
	p := c.WorldToLightLocal().Mul4x1(c.Center.Add(fwd).Vec4(1)).Vec3()
	if !vecNear(p, mgl32.Vec3{0, 0, 1}, 1e-5) {
		t.Errorf("light forward maps to %v, want +Z", p)
	}
	round := c.LightLocalToWorld().Mul4(c.WorldToLightLocal())
	if !matNear(round, mgl32.Ident4(), 1e-5) {
		t.Errorf("LightLocalToWorld * WorldToLightLocal = %v", round)
	}
}

func TestCascadeRasterView(t *testing.T) {
	c := newCascades(testConfig(8, 2))[1]
	for _, o := range rasterPoses {
		v := c.rasterView(o, 0x5)
		if v.Near != -c.HalfExtent || v.Far != c.HalfExtent || v.HalfExtent != c.HalfExtent {
			t.Errorf("%v: near/far/half = %v/%v/%v", o, v.Near, v.Far, v.HalfExtent)
		}
		_, _, dz := o.Basis()
		want := c.Rotation.Rotate(dz)
		if got := v.Rotation.Rotate(mgl32.Vec3{0, 0, 1}); !vecNear(got, want, 1e-5) {
			t.Errorf("%v: camera forward = %v, want %v", o, got, want)
		}
		if v.CullingMask != 0x5 || v.Cascade != 1 || v.Keyword() != o.Keyword() {
			t.Errorf("%v: view = %+v", o, v)
		}
	}
}
