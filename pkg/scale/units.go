package scale

import (
	"fmt"
	"math"
	"strings"
)

// Units selects how distances are displayed.
type Units uint8

// Unit systems.
const (
	UnitsMetric Units = iota
	UnitsImperial
	UnitsBoth
)

// Conversion factors.
const (
	FeetPerMeter       = 3.28084
	MilesPerMeter      = 0.000621371
	FeetPerMile        = 5280
	SqMilesPerSqKm     = 0.386102
	squareMetersPerKm2 = 1_000_000
)

// String returns the unit system name.
func (u Units) String() string {
	switch u {
	case UnitsMetric:
		return "metric"
	case UnitsImperial:
		return "imperial"
	case UnitsBoth:
		return "both"
	default:
		return fmt.Sprintf("Unknown(%d)", u)
	}
}

// ParseUnits converts a unit system name into Units.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric":
		return UnitsMetric, nil
	case "imperial":
		return UnitsImperial, nil
	case "both":
		return UnitsBoth, nil
	default:
		return UnitsMetric, fmt.Errorf("unknown unit system %q", s)
	}
}

// FormatDistance renders a distance in meters. Distances of 1 km (or 1 mile) and more
// switch to the larger unit.
func FormatDistance(meters float64, u Units) string {
	switch u {
	case UnitsImperial:
		feet := meters * FeetPerMeter
		if miles := feet / FeetPerMile; miles >= 1 {
			return fmt.Sprintf("%.2f miles", miles)
		}
		return fmt.Sprintf("%.2f ft", feet)
	case UnitsBoth:
		if meters >= 1000 {
			return fmt.Sprintf("%.2f km / %.2f miles", meters/1000, meters*MilesPerMeter)
		}
		return fmt.Sprintf("%.2f m / %.2f ft", meters, meters*FeetPerMeter)
	default:
		if meters >= 1000 {
			return fmt.Sprintf("%.2f km", meters/1000)
		}
		return fmt.Sprintf("%.2f m", meters)
	}
}

// FormatArea renders an area given in square meters.
func FormatArea(m2 float64, u Units) string {
	km2 := m2 / squareMetersPerKm2
	mi2 := km2 * SqMilesPerSqKm
	switch u {
	case UnitsImperial:
		return fmt.Sprintf("%.2f mi²", mi2)
	case UnitsBoth:
		return fmt.Sprintf("%.2f km² / %.2f mi²", km2, mi2)
	default:
		return fmt.Sprintf("%.2f km²", km2)
	}
}

// MapSize summarizes the real-world extent of a sector grid.
type MapSize struct {
	WidthCells  int
	HeightCells int
	Width       float64 // meters
	Height      float64 // meters
	Diagonal    float64 // meters
	Area        float64 // square meters
}

// MapSize returns the extent of a grid of sectorsX x sectorsY tiles.
func (c Context) MapSize(sectorsX, sectorsY int) MapSize {
	w := sectorsX * c.TileWidth
	h := sectorsY * c.TileHeight
	wm := float64(w) * MetersPerCell
	hm := float64(h) * MetersPerCell
	return MapSize{
		WidthCells:  w,
		HeightCells: h,
		Width:       wm,
		Height:      hm,
		Diagonal:    math.Hypot(wm, hm),
		Area:        wm * hm,
	}
}

// Format renders the summary on one line.
func (m MapSize) Format(u Units) string {
	return fmt.Sprintf("%s x %s (diagonal: %s) | Area: %s | Resolution: %dx%d cells",
		FormatDistance(m.Width, u),
		FormatDistance(m.Height, u),
		FormatDistance(m.Diagonal, u),
		FormatArea(m.Area, u),
		m.WidthCells, m.HeightCells)
}
