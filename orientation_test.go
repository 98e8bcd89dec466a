package semistaticlights

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestOrientationAxes(t *testing.T) {
	tests := []struct {
		o          Orientation
		dx, dy, dz [3]int32
	}{
		{OrientationX, [3]int32{0, 1, 0}, [3]int32{0, 0, 1}, [3]int32{1, 0, 0}},
		{OrientationY, [3]int32{0, 0, 1}, [3]int32{1, 0, 0}, [3]int32{0, 1, 0}},
		{OrientationZ, [3]int32{1, 0, 0}, [3]int32{0, 1, 0}, [3]int32{0, 0, 1}},
	}
	for _, tt := range tests {
		dx, dy, dz := tt.o.Axes()
		if dx != tt.dx || dy != tt.dy || dz != tt.dz {
			t.Errorf("%v.Axes() = %v %v %v, want %v %v %v", tt.o, dx, dy, dz, tt.dx, tt.dy, tt.dz)
		}
	}
}

func TestOrientationFramesRightHanded(t *testing.T) {
	for _, o := range Orientations {
		r, u, f := o.Basis()
		if !vecNear(r.Cross(u), f, 1e-6) {
			t.Errorf("%v: right x up = %v, want forward %v", o, r.Cross(u), f)
		}
	}
}

func TestOrientationRotation(t *testing.T) {
	for _, o := range Orientations {
		q := o.Rotation()
		r, u, f := o.Basis()
		if got := q.Rotate(mgl32.Vec3{1, 0, 0}); !vecNear(got, r, 1e-5) {
			t.Errorf("%v: rotate X = %v, want %v", o, got, r)
		}
		if got := q.Rotate(mgl32.Vec3{0, 1, 0}); !vecNear(got, u, 1e-5) {
			t.Errorf("%v: rotate Y = %v, want %v", o, got, u)
		}
		if got := q.Rotate(mgl32.Vec3{0, 0, 1}); !vecNear(got, f, 1e-5) {
			t.Errorf("%v: rotate Z = %v, want %v", o, got, f)
		}
	}
}

func TestOrientationKeywordsAndRays(t *testing.T) {
	if rasterPoses[0].Keyword() != "" {
		t.Errorf("first raster pose keyword = %q, want identity", rasterPoses[0].Keyword())
	}
	seen := map[string]bool{}
	for _, o := range rasterPoses {
		seen[o.Keyword()] = true
	}
	if len(seen) != 3 {
		t.Errorf("raster pose keywords not distinct: %v", seen)
	}

	slots := map[int]bool{}
	for _, o := range Orientations {
		slots[o.RayIndex(false)] = true
		slots[o.RayIndex(true)] = true
	}
	for i := 0; i < 6; i++ {
		if !slots[i] {
			t.Errorf("ray slot %d unused", i)
		}
	}
}
