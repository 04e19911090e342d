// Package terrain stitches decoded sector tiles into one world heightmap.
package terrain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// MaxGridCells bounds the size of an assembled grid.
const MaxGridCells = 1 << 30

// ErrGridTooLarge is returned when the sector bounds would need more than MaxGridCells cells.
var ErrGridTooLarge = errors.New("world grid too large")

// Placement records where a sector landed in the grid.
type Placement struct {
	ID     scale.SectorID
	Origin scale.Cell // South-west cell of the tile
	Path   string
	Format formats.Format
	Empty  bool               // Sector decoded but carried no samples
	Water  *formats.WaterInfo // Legacy sectors only
}

// WorldGrid is the stitched elevation surface. Row 0 is the southern edge; cells not covered
// by a decoded tile hold formats.NoData.
//
// A grid is written only by the Assembler that created it and is read-only afterwards.
type WorldGrid struct {
	Width    int // cells
	Height   int // cells
	SectorsX int
	SectorsY int
	Scale    scale.Context

	samples    []float32
	claims     []atomic.Bool // one per sector slot
	placements []Placement
}

// NewWorldGrid allocates a grid covering the sector rectangle lo..hi (inclusive) for tiles of
// the size given by ctx. ctx.Origin is replaced by lo.
func NewWorldGrid(ctx scale.Context, lo, hi scale.SectorID) (*WorldGrid, error) {
	if ctx.TileWidth <= 0 || ctx.TileHeight <= 0 {
		return nil, fmt.Errorf("invalid tile size %dx%d", ctx.TileWidth, ctx.TileHeight)
	}
	sx := hi.X - lo.X + 1
	sy := hi.Y - lo.Y + 1
	if sx <= 0 || sy <= 0 {
		return nil, fmt.Errorf("invalid sector bounds %s..%s", lo, hi)
	}

	w := int64(sx) * int64(ctx.TileWidth)
	h := int64(sy) * int64(ctx.TileHeight)
	if w*h > MaxGridCells {
		return nil, fmt.Errorf("%w: %dx%d cells", ErrGridTooLarge, w, h)
	}

	ctx.Origin = lo
	g := &WorldGrid{
		Width:    int(w),
		Height:   int(h),
		SectorsX: sx,
		SectorsY: sy,
		Scale:    ctx,
		samples:  make([]float32, w*h),
		claims:   make([]atomic.Bool, sx*sy),
	}
	for i := range g.samples {
		g.samples[i] = formats.NoData
	}
	return g, nil
}

// At returns the elevation at a cell, or formats.NoData outside the grid.
func (g *WorldGrid) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return formats.NoData
	}
	return g.samples[y*g.Width+x]
}

// Valid reports whether a cell holds an elevation.
func (g *WorldGrid) Valid(x, y int) bool {
	return !formats.IsNoData(g.At(x, y))
}

// Row returns row y (0 = south) without copying. Callers must not modify it.
func (g *WorldGrid) Row(y int) []float32 {
	return g.samples[y*g.Width : (y+1)*g.Width]
}

// HeightAt returns the bilinearly interpolated elevation at a grid-space point, where sample
// (x, y) sits at integer coordinates. No-data corners are dropped and the remaining weights
// renormalized; ok is false when none are valid or the point is outside the grid.
func (g *WorldGrid) HeightAt(x, y float64) (h float64, ok bool) {
	if x < 0 || y < 0 || x > float64(g.Width-1) || y > float64(g.Height-1) {
		return 0, false
	}

	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	if x0 >= g.Width-1 && g.Width > 1 {
		x0 = g.Width - 2
	}
	if y0 >= g.Height-1 && g.Height > 1 {
		y0 = g.Height - 2
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	// Corners: SW, SE, NW, NE. At() returns no-data past the edge of a 1-wide grid.
	c := [4]float32{g.At(x0, y0), g.At(x0+1, y0), g.At(x0, y0+1), g.At(x0+1, y0+1)}
	w := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}

	var sum, wsum, plain float64
	var n int
	for i, v := range c {
		if formats.IsNoData(v) {
			continue
		}
		sum += float64(v) * w[i]
		wsum += w[i]
		plain += float64(v)
		n++
	}
	switch {
	case n == 0:
		return 0, false
	case wsum > 0:
		return sum / wsum, true
	default:
		// The point sits on a no-data sample; fall back to its valid neighbours.
		return plain / float64(n), true
	}
}

// Stats summarizes the grid's elevation content.
type Stats struct {
	Min, Max float32 // Meaningful only when Valid > 0
	Valid    int
	Total    int
}

// Coverage returns the fraction of cells holding an elevation.
func (s Stats) Coverage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Valid) / float64(s.Total)
}

// Stats scans the grid.
func (g *WorldGrid) Stats() Stats {
	s := Stats{Total: len(g.samples)}
	for _, v := range g.samples {
		if formats.IsNoData(v) {
			continue
		}
		if s.Valid == 0 {
			s.Min, s.Max = v, v
		} else {
			s.Min = min(s.Min, v)
			s.Max = max(s.Max, v)
		}
		s.Valid++
	}
	return s
}

// Placements returns the placed sectors ordered by SectorID.
func (g *WorldGrid) Placements() []Placement {
	return g.placements
}

// Sector returns the placement of a sector.
func (g *WorldGrid) Sector(id scale.SectorID) (Placement, bool) {
	i := sort.Search(len(g.placements), func(i int) bool {
		return !g.placements[i].ID.Less(id)
	})
	if i < len(g.placements) && g.placements[i].ID == id {
		return g.placements[i], true
	}
	return Placement{}, false
}

// SectorAt returns the placement covering a grid cell.
func (g *WorldGrid) SectorAt(cell scale.Cell) (Placement, bool) {
	if cell.X < 0 || cell.Y < 0 || cell.X >= g.Width || cell.Y >= g.Height {
		return Placement{}, false
	}
	return g.Sector(g.Scale.GridToSectorID(cell))
}

// slot returns the claim index of a sector, or -1 outside the grid.
func (g *WorldGrid) slot(id scale.SectorID) int {
	x := id.X - g.Scale.Origin.X
	y := id.Y - g.Scale.Origin.Y
	if x < 0 || y < 0 || x >= g.SectorsX || y >= g.SectorsY {
		return -1
	}
	return y*g.SectorsX + x
}

// claim marks a sector's region as owned. It fails if the region was already claimed.
func (g *WorldGrid) claim(id scale.SectorID) bool {
	i := g.slot(id)
	return i >= 0 && g.claims[i].CompareAndSwap(false, true)
}

// blit copies a tile into its claimed region. Every destination cell must still be no-data.
func (g *WorldGrid) blit(id scale.SectorID, tile *formats.Tile) error {
	o := g.Scale.SectorIDToGridOrigin(id)
	w := g.Scale.TileWidth
	row := func(y int) []float32 {
		start := (o.Y+y)*g.Width + o.X
		return g.samples[start : start+w]
	}

	for y := 0; y < tile.Height; y++ {
		for x, v := range row(y) {
			if !formats.IsNoData(v) {
				return fmt.Errorf("cell (%d, %d) already holds data", o.X+x, o.Y+y)
			}
		}
	}
	for y := 0; y < tile.Height; y++ {
		copy(row(y), tile.Samples[y*tile.Width:(y+1)*tile.Width])
	}
	return nil
}

func (g *WorldGrid) finish(placements []Placement) {
	sort.Slice(placements, func(i, j int) bool { return placements[i].ID.Less(placements[j].ID) })
	g.placements = placements
}
