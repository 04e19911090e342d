// Package math provides planar vector helpers for grid-space measurement.
package math

import "math"

// Vec2 is a point or offset in grid space. One unit is one cell.
type Vec2 struct {
	X, Y float64
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Length returns the magnitude.
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Distance returns the distance to another point.
func (v Vec2) Distance(other Vec2) float64 {
	return v.Sub(other).Length()
}

// Floor returns the integer cell containing v.
func (v Vec2) Floor() (x, y int) {
	return int(math.Floor(v.X)), int(math.Floor(v.Y))
}
