package math

import (
	"testing"
)

func TestVec2Sub(t *testing.T) {
	got := Vec2{4, 6}.Sub(Vec2{1, 2})
	want := Vec2{3, 4}
	if got != want {
		t.Errorf("Vec2.Sub() = %v, want %v", got, want)
	}
}

func TestVec2Length(t *testing.T) {
	v := Vec2{3, 4}
	got := v.Length()
	if got != 5 {
		t.Errorf("Vec2.Length() = %v, want 5", got)
	}
}

func TestVec2Distance(t *testing.T) {
	got := Vec2{0, 0}.Distance(Vec2{3, 4})
	if got != 5 {
		t.Errorf("Vec2.Distance() = %v, want 5", got)
	}
	if d := (Vec2{-2, 7}).Distance(Vec2{-2, 7}); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestVec2Floor(t *testing.T) {
	x, y := Vec2{2.9, -0.5}.Floor()
	if x != 2 || y != -1 {
		t.Errorf("Vec2.Floor() = (%d, %d), want (2, -1)", x, y)
	}
}
