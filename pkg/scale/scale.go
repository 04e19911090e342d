// Package scale maps between sector coordinates, global grid cells and meters.
//
// Grid space has its origin at the south-west corner of the origin sector. X grows east and
// Y grows north, one cell per meter.
package scale

import (
	"fmt"

	vmath "github.com/Faultbox/sdat-terrain/pkg/math"
)

// MetersPerCell is the real-world size of one grid cell.
const MetersPerCell = 1.0

// SectorID identifies a sector's position in the world grid. Y grows northwards.
type SectorID struct {
	X, Y int
}

// String returns "(x, y)".
func (id SectorID) String() string {
	return fmt.Sprintf("(%d, %d)", id.X, id.Y)
}

// Less orders sectors south to north, then west to east.
func (id SectorID) Less(other SectorID) bool {
	if id.Y != other.Y {
		return id.Y < other.Y
	}
	return id.X < other.X
}

// Cell is a global grid cell index.
type Cell struct {
	X, Y int
}

// Context holds the dataset-wide mapping constants. It is set once the tile size is known.
type Context struct {
	TileWidth  int
	TileHeight int
	Origin     SectorID // Sector whose south-west cell is grid cell (0, 0)
}

// NewContext returns a Context for tiles of width x height cells.
func NewContext(width, height int, origin SectorID) Context {
	return Context{TileWidth: width, TileHeight: height, Origin: origin}
}

// MetersPerCell returns the cell size in meters.
func (c Context) MetersPerCell() float64 {
	return MetersPerCell
}

// GridToSectorID returns the sector covering a grid cell.
func (c Context) GridToSectorID(cell Cell) SectorID {
	return SectorID{
		X: c.Origin.X + floorDiv(cell.X, c.TileWidth),
		Y: c.Origin.Y + floorDiv(cell.Y, c.TileHeight),
	}
}

// SectorIDToGridOrigin returns the grid cell of a sector's south-west corner.
func (c Context) SectorIDToGridOrigin(id SectorID) Cell {
	return Cell{
		X: (id.X - c.Origin.X) * c.TileWidth,
		Y: (id.Y - c.Origin.Y) * c.TileHeight,
	}
}

// LocalCell returns the sector covering a grid cell and the cell's position inside that tile.
func (c Context) LocalCell(cell Cell) (SectorID, int, int) {
	id := c.GridToSectorID(cell)
	o := c.SectorIDToGridOrigin(id)
	return id, cell.X - o.X, cell.Y - o.Y
}

// DistanceMeters returns the straight-line distance between two grid-space points.
func DistanceMeters(p1, p2 vmath.Vec2) float64 {
	return p1.Distance(p2) * MetersPerCell
}

func floorDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
