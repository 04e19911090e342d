package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// Layout maps linear sector numbers onto the sector grid.
type Layout uint8

// Sector ordering layouts. Rows are counted from the top of the map when displayed;
// SectorID.Y counts from the bottom.
const (
	LayoutBottomLeft           Layout = iota // 0 at bottom-left, right then up
	LayoutTopLeft                            // 0 at top-left, right then down
	LayoutBottomRight                        // 0 at bottom-right, left then up
	LayoutTopRight                           // 0 at top-right, left then down
	LayoutBottomLeftColumns                  // 0 at bottom-left, up then right
	LayoutTopLeftColumns                     // 0 at top-left, down then right
	LayoutBlocksVertical                     // 2x2 blocks down then across, TR and BL swapped
	LayoutBlocksHorizontal                   // 2x2 blocks across then down, TR and BL swapped
	LayoutBlocksVerticalNoSwap               // 2x2 blocks down then across
	LayoutBlocksVerticalSwap03               // 2x2 blocks down then across, TL and BR swapped
)

var layoutNames = []string{
	LayoutBottomLeft:           "bottom-left",
	LayoutTopLeft:              "top-left",
	LayoutBottomRight:          "bottom-right",
	LayoutTopRight:             "top-right",
	LayoutBottomLeftColumns:    "bottom-left-columns",
	LayoutTopLeftColumns:       "top-left-columns",
	LayoutBlocksVertical:       "blocks-vertical",
	LayoutBlocksHorizontal:     "blocks-horizontal",
	LayoutBlocksVerticalNoSwap: "blocks-vertical-noswap",
	LayoutBlocksVerticalSwap03: "blocks-vertical-swap03",
}

var layoutDescriptions = []string{
	LayoutBottomLeft:           "sector 0 at bottom-left, numbered right then up",
	LayoutTopLeft:              "sector 0 at top-left, numbered right then down",
	LayoutBottomRight:          "sector 0 at bottom-right, numbered left then up",
	LayoutTopRight:             "sector 0 at top-right, numbered left then down",
	LayoutBottomLeftColumns:    "sector 0 at bottom-left, numbered up then right",
	LayoutTopLeftColumns:       "sector 0 at top-left, numbered down then right",
	LayoutBlocksVertical:       "2x2 blocks from top-left going down, TR/BL swapped",
	LayoutBlocksHorizontal:     "2x2 blocks from top-left going right, TR/BL swapped",
	LayoutBlocksVerticalNoSwap: "2x2 blocks from top-left going down, no swap",
	LayoutBlocksVerticalSwap03: "2x2 blocks from top-left going down, TL/BR swapped",
}

// Layouts returns every layout in declaration order.
func Layouts() []Layout {
	out := make([]Layout, len(layoutNames))
	for i := range out {
		out[i] = Layout(i)
	}
	return out
}

// String returns the layout name.
func (l Layout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("Unknown(%d)", l)
}

// Description returns a one-line explanation of the numbering.
func (l Layout) Description() string {
	if int(l) < len(layoutDescriptions) {
		return layoutDescriptions[l]
	}
	return ""
}

// Blocks reports whether the layout groups sectors into 2x2 blocks.
// Such layouts need an even number of columns and rows.
func (l Layout) Blocks() bool {
	return l >= LayoutBlocksVertical
}

// ParseLayout converts a layout name into a Layout.
func ParseLayout(s string) (Layout, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LayoutBottomLeft, nil
	}
	for i, name := range layoutNames {
		if name == s {
			return Layout(i), nil
		}
	}
	return LayoutBottomLeft, fmt.Errorf("unknown sector layout %q", s)
}

// Within each 2x2 block positions are TL, TR, BL, BR.
var blockOffsets = map[Layout][4]int{
	LayoutBlocksVertical:       {0, 2, 1, 3},
	LayoutBlocksHorizontal:     {0, 2, 1, 3},
	LayoutBlocksVerticalNoSwap: {0, 1, 2, 3},
	LayoutBlocksVerticalSwap03: {3, 1, 2, 0},
}

// IndexAt returns the sector number shown at a display position, where displayRow 0 is the
// top row of a columns x rows grid.
func (l Layout) IndexAt(displayRow, col, columns, rows int) int {
	switch l {
	case LayoutTopLeft:
		return displayRow*columns + col
	case LayoutBottomRight:
		return (rows-1-displayRow)*columns + (columns - 1 - col)
	case LayoutTopRight:
		return displayRow*columns + (columns - 1 - col)
	case LayoutBottomLeftColumns:
		return col*rows + (rows - 1 - displayRow)
	case LayoutTopLeftColumns:
		return col*rows + displayRow
	case LayoutBlocksVertical, LayoutBlocksHorizontal, LayoutBlocksVerticalNoSwap, LayoutBlocksVerticalSwap03:
		blockCol, blockRow := col/2, displayRow/2
		var block int
		if l == LayoutBlocksHorizontal {
			block = blockRow*(columns/2) + blockCol
		} else {
			block = blockCol*(rows/2) + blockRow
		}
		within := (displayRow%2)*2 + col%2
		return block*4 + blockOffsets[l][within]
	default:
		return (rows-1-displayRow)*columns + col
	}
}

// MaxSectors bounds the number of cells in a sector grid.
const MaxSectors = 1 << 20

// SuggestDims returns a near-square grid able to hold n sectors: ceil(sqrt(n)) columns and
// as many rows as needed. Block layouts are rounded up to even sizes.
//
// Scan passes the highest sector number plus one, not the number of files found, so a sparse
// dataset such as sd0 and sd99 gets a grid sized for 100 sectors.
func SuggestDims(n int, layout Layout) (columns, rows int) {
	if n <= 0 {
		return 0, 0
	}
	columns = int(math.Ceil(math.Sqrt(float64(n))))
	rows = (n + columns - 1) / columns
	if layout.Blocks() {
		columns += columns % 2
		rows += rows % 2
	}
	return columns, rows
}

// Grid resolves sector numbers to SectorIDs for one layout and grid size.
type Grid struct {
	Layout  Layout
	Columns int
	Rows    int

	ids []scale.SectorID // indexed by sector number
}

// NewGrid builds the inverse of Layout.IndexAt for a columns x rows grid.
func NewGrid(layout Layout, columns, rows int) (*Grid, error) {
	if columns <= 0 || rows <= 0 {
		return nil, fmt.Errorf("sector grid must be positive, got %dx%d", columns, rows)
	}
	if columns > MaxSectors/rows {
		return nil, fmt.Errorf("sector grid %dx%d exceeds %d sectors", columns, rows, MaxSectors)
	}
	if layout.Blocks() && (columns%2 != 0 || rows%2 != 0) {
		return nil, fmt.Errorf("layout %s needs even grid dimensions, got %dx%d", layout, columns, rows)
	}

	n := columns * rows
	g := &Grid{Layout: layout, Columns: columns, Rows: rows, ids: make([]scale.SectorID, n)}
	seen := make([]bool, n)
	for displayRow := 0; displayRow < rows; displayRow++ {
		for col := 0; col < columns; col++ {
			idx := layout.IndexAt(displayRow, col, columns, rows)
			if idx < 0 || idx >= n || seen[idx] {
				return nil, fmt.Errorf("layout %s does not number a %dx%d grid uniquely (sector %d)", layout, columns, rows, idx)
			}
			seen[idx] = true
			g.ids[idx] = scale.SectorID{X: col, Y: rows - 1 - displayRow}
		}
	}
	return g, nil
}

// SectorID returns the position of sector number index. ok is false when the index does not
// fit the grid.
func (g *Grid) SectorID(index int) (id scale.SectorID, ok bool) {
	if index < 0 || index >= len(g.ids) {
		return scale.SectorID{}, false
	}
	return g.ids[index], true
}

// Index returns the sector number at id, or -1 outside the grid.
func (g *Grid) Index(id scale.SectorID) int {
	if id.X < 0 || id.Y < 0 || id.X >= g.Columns || id.Y >= g.Rows {
		return -1
	}
	return g.Layout.IndexAt(g.Rows-1-id.Y, id.X, g.Columns, g.Rows)
}
