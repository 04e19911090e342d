package formats

import "math"

// NoData is the sample value of cells that carry no elevation. Use IsNoData to test for it,
// NaN never compares equal to itself.
var NoData = float32(math.NaN())

// IsNoData reports whether v is the no-data sentinel.
func IsNoData(v float32) bool {
	return v != v
}

// Tile is the decoded elevation content of one sector.
type Tile struct {
	Width   int
	Height  int
	Samples []float32 // Row-major, len = Width*Height, elevation in meters
	Format  Format

	// Empty is set for sectors that declare no resolution or no chunks. Such tiles are valid
	// and hold only no-data; Width and Height may be zero.
	Empty bool

	// Coordinates declared by the file itself, when the layout carries them.
	HasCoords bool
	SectorX   int32
	SectorY   int32

	Water *WaterInfo // Legacy layout only; nil when the file has no water block
}

// NewEmptyTile returns a tile of the given size filled with no-data.
func NewEmptyTile(width, height int) *Tile {
	samples := make([]float32, width*height)
	for i := range samples {
		samples[i] = NoData
	}
	return &Tile{
		Width:   width,
		Height:  height,
		Samples: samples,
	}
}

// At returns the sample at (x, y). Returns NoData if out of bounds.
func (t *Tile) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return NoData
	}
	return t.Samples[y*t.Width+x]
}

// Valid reports whether (x, y) holds an elevation.
func (t *Tile) Valid(x, y int) bool {
	return !IsNoData(t.At(x, y))
}

// ElevationRange returns the minimum and maximum elevation, ignoring no-data.
// ok is false when the tile has no data at all.
func (t *Tile) ElevationRange() (min, max float32, ok bool) {
	for _, v := range t.Samples {
		if IsNoData(v) {
			continue
		}
		if !ok {
			min, max, ok = v, v, true
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, ok
}

// CountValid returns the number of cells holding an elevation.
func (t *Tile) CountValid() int {
	n := 0
	for _, v := range t.Samples {
		if !IsNoData(v) {
			n++
		}
	}
	return n
}

// WaterInfo describes the water plane stored in a legacy sector.
type WaterInfo struct {
	Height         float32
	HeightOffset   int    // Byte offset of the height field
	Material       string // Material path, empty when not found
	MaterialOffset int    // -1 when Material is empty
}

// HasWater reports whether the sector declares a water plane.
func (w *WaterInfo) HasWater() bool {
	return w != nil && w.Height != 0 && !IsNoData(w.Height)
}
