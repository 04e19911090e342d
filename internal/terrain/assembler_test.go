package terrain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/formats/sdattest"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

const tileSize = 8

// sectorHeight gives every sector a distinct flat elevation.
func sectorHeight(id scale.SectorID) float32 {
	return float32(100 + id.X*10 + id.Y)
}

func writeSector(t *testing.T, dir string, id scale.SectorID, mutate func(*sdattest.Sector)) {
	t.Helper()
	s := sdattest.Sector{
		Width:   tileSize,
		Height:  tileSize,
		Heights: sdattest.Flat(tileSize, tileSize, sectorHeight(id)),
	}
	if mutate != nil {
		mutate(&s)
	}
	sdattest.WriteFile(t, dir, fmt.Sprintf("sd_%d_%d.sdat", id.X, id.Y), s.Bytes())
}

func scan(t *testing.T, dir string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Scan(context.Background(), dir, catalog.Options{})
	require.NoError(t, err)
	return cat
}

func requireRegion(t *testing.T, g *WorldGrid, id scale.SectorID, want float32) {
	t.Helper()
	o := g.Scale.SectorIDToGridOrigin(id)
	for y := o.Y; y < o.Y+g.Scale.TileHeight; y++ {
		for x := o.X; x < o.X+g.Scale.TileWidth; x++ {
			got := g.At(x, y)
			if formats.IsNoData(want) {
				require.True(t, formats.IsNoData(got), "sector %s cell (%d, %d) = %v, want no-data", id, x, y, got)
				continue
			}
			require.Equal(t, want, got, "sector %s cell (%d, %d)", id, x, y)
		}
	}
}

func TestAssemble_MissingInteriorSector(t *testing.T) {
	dir := t.TempDir()
	hole := scale.SectorID{X: 1, Y: 1}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if id := (scale.SectorID{X: x, Y: y}); id != hole {
				writeSector(t, dir, id, nil)
			}
		}
	}

	grid, report, err := NewAssembler(Options{Workers: 4}).Assemble(context.Background(), scan(t, dir))
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 3*tileSize, grid.Width)
	assert.Equal(t, 3*tileSize, grid.Height)
	assert.Equal(t, 8, report.Placed)
	assert.Len(t, grid.Placements(), 8)

	requireRegion(t, grid, hole, formats.NoData)
	for _, p := range grid.Placements() {
		requireRegion(t, grid, p.ID, sectorHeight(p.ID))
	}

	stats := grid.Stats()
	assert.Equal(t, 8*tileSize*tileSize, stats.Valid)
	assert.InDelta(t, 8.0/9.0, stats.Coverage(), 1e-9)
}

func TestAssemble_DisjointSectorsNeverConflict(t *testing.T) {
	dir := t.TempDir()
	for y := -2; y < 2; y++ {
		for x := -3; x < 3; x++ {
			writeSector(t, dir, scale.SectorID{X: x, Y: y}, nil)
		}
	}

	grid, report, err := NewAssembler(Options{Workers: 8}).Assemble(context.Background(), scan(t, dir))
	require.NoError(t, err)
	assert.Zero(t, report.Counts[formats.KindPlacementConflict])
	assert.Equal(t, 24, report.Placed)
	assert.Equal(t, scale.SectorID{X: -3, Y: -2}, grid.Scale.Origin)

	for _, p := range grid.Placements() {
		requireRegion(t, grid, p.ID, sectorHeight(p.ID))
	}
}

func TestAssemble_TruncatedNeighbourIsolated(t *testing.T) {
	dir := t.TempDir()
	good := scale.SectorID{X: 0, Y: 0}
	bad := scale.SectorID{X: 1, Y: 0}
	writeSector(t, dir, good, nil)

	full := sdattest.Sector{Width: tileSize, Height: tileSize, Heights: sdattest.Flat(tileSize, tileSize, 1)}.Bytes()
	sdattest.WriteFile(t, dir, "sd_1_0.sdat", full[:formats.SDATHeaderSize+3])

	grid, report, err := NewAssembler(Options{Workers: 2}).Assemble(context.Background(), scan(t, dir))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Placed)
	assert.Equal(t, 1, report.Counts[formats.KindTruncatedData])
	assert.Equal(t, []scale.SectorID{bad}, report.FailedIDs())
	assert.ErrorIs(t, report.Err(), formats.ErrTruncatedData)
	assert.Len(t, multierr.Errors(report.Err()), 1)
	assert.Contains(t, report.Summary(), "TruncatedData=1")

	requireRegion(t, grid, good, sectorHeight(good))
	requireRegion(t, grid, bad, formats.NoData)
}

func TestAssemble_StrictReturnsFirstError(t *testing.T) {
	dir := t.TempDir()
	writeSector(t, dir, scale.SectorID{X: 0, Y: 0}, nil)
	writeSector(t, dir, scale.SectorID{X: 1, Y: 0}, func(s *sdattest.Sector) {
		s.Version = formats.SDATVersion{Major: 3}
	})
	writeSector(t, dir, scale.SectorID{X: 2, Y: 0}, nil)

	_, report, err := NewAssembler(Options{Workers: 1, Strict: true}).Assemble(context.Background(), scan(t, dir))
	require.Error(t, err)

	var de *formats.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, formats.KindFormatMismatch, de.Kind)
	assert.ErrorIs(t, err, formats.ErrUnsupportedSDATVersion)
	require.Len(t, report.Failed, 1)
	assert.Same(t, report.Failed[0].Err, err)
}

func TestAssemble_HeaderCoordsMustMatch(t *testing.T) {
	dir := t.TempDir()
	writeSector(t, dir, scale.SectorID{X: 0, Y: 0}, func(s *sdattest.Sector) {
		s.HasCoords = true
	})
	writeSector(t, dir, scale.SectorID{X: 1, Y: 0}, func(s *sdattest.Sector) {
		s.HasCoords, s.X, s.Y = true, 5, 5
	})

	grid, report, err := NewAssembler(Options{}).Assemble(context.Background(), scan(t, dir))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts[formats.KindPlacementConflict])
	requireRegion(t, grid, scale.SectorID{X: 1, Y: 0}, formats.NoData)
}

func TestAssemble_TileSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSector(t, dir, scale.SectorID{X: 0, Y: 0}, nil)
	writeSector(t, dir, scale.SectorID{X: 0, Y: 1}, func(s *sdattest.Sector) {
		s.Width, s.Height = 4, 4
		s.Heights = sdattest.Flat(4, 4, 1)
	})

	_, report, err := NewAssembler(Options{}).Assemble(context.Background(), scan(t, dir))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts[formats.KindFormatMismatch])
}

func TestAssemble_EmptySectors(t *testing.T) {
	dir := t.TempDir()
	zero := uint16(0)
	// The empty sector sorts first, so the probe must skip it.
	writeSector(t, dir, scale.SectorID{X: 0, Y: 0}, func(s *sdattest.Sector) {
		s.Chunks = []sdattest.Chunk{}
		s.DeclaredChunks = &zero
	})
	writeSector(t, dir, scale.SectorID{X: 1, Y: 0}, nil)

	grid, report, err := NewAssembler(Options{}).Assemble(context.Background(), scan(t, dir))
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 1, report.Empty)
	assert.Equal(t, 1, report.Placed)
	assert.Equal(t, 1, report.Counts[formats.KindEmptySector])
	requireRegion(t, grid, scale.SectorID{X: 0, Y: 0}, formats.NoData)

	p, ok := grid.Sector(scale.SectorID{X: 0, Y: 0})
	require.True(t, ok)
	assert.True(t, p.Empty)
}

// mapSource serves tiles from memory.
type mapSource struct {
	mu     sync.Mutex
	tiles  map[scale.SectorID]*formats.Tile
	loads  int
	onLoad func(n int)
}

func (s *mapSource) Load(_ context.Context, e *catalog.Entry) (*formats.Tile, error) {
	s.mu.Lock()
	s.loads++
	n := s.loads
	s.mu.Unlock()
	if s.onLoad != nil {
		s.onLoad(n)
	}
	tile, ok := s.tiles[e.ID]
	if !ok {
		return nil, errors.New("no such tile")
	}
	return tile, nil
}

func memCatalog(t *testing.T, src *mapSource) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	for id := range src.tiles {
		require.NoError(t, cat.Add(&catalog.Entry{ID: id, Path: fmt.Sprintf("mem:%s", id)}))
	}
	return cat
}

func flatTile(w, h int, v float32) *formats.Tile {
	tile := formats.NewEmptyTile(w, h)
	for i := range tile.Samples {
		tile.Samples[i] = v
	}
	tile.Format = formats.FormatCSDAT
	return tile
}

func TestAssemble_CancelBetweenSectors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &mapSource{tiles: map[scale.SectorID]*formats.Tile{}}
	for x := 0; x < 6; x++ {
		src.tiles[scale.SectorID{X: x}] = flatTile(4, 4, float32(x))
	}
	src.onLoad = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	grid, report, err := NewAssembler(Options{Workers: 1, Source: src}).Assemble(ctx, memCatalog(t, src))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, grid)
	assert.True(t, report.Cancelled)
	assert.GreaterOrEqual(t, report.Placed, 1)
	assert.Less(t, report.Placed, 6)
	assert.Equal(t, 6, report.Placed+report.Skipped+len(report.Failed))

	// Whatever was placed is complete; the rest is untouched no-data.
	for x := 0; x < 6; x++ {
		id := scale.SectorID{X: x}
		if _, ok := grid.Sector(id); ok {
			requireRegion(t, grid, id, float32(x))
		} else {
			requireRegion(t, grid, id, formats.NoData)
		}
	}
}

func TestAssemble_ConfiguredTileSize(t *testing.T) {
	src := &mapSource{tiles: map[scale.SectorID]*formats.Tile{
		{X: 0, Y: 0}: flatTile(4, 4, 1),
		{X: 1, Y: 0}: flatTile(5, 5, 2),
	}}

	grid, report, err := NewAssembler(Options{TileWidth: 5, TileHeight: 5, Source: src}).Assemble(context.Background(), memCatalog(t, src))
	require.NoError(t, err)
	assert.Equal(t, 10, grid.Width)
	assert.Equal(t, 1, report.Placed)
	assert.Equal(t, 1, report.Counts[formats.KindFormatMismatch])
	assert.Equal(t, 2, src.loads)
}

func TestAssemble_NoTileSize(t *testing.T) {
	src := &mapSource{tiles: map[scale.SectorID]*formats.Tile{
		{X: 0, Y: 0}: {Empty: true},
	}}
	_, report, err := NewAssembler(Options{Source: src}).Assemble(context.Background(), memCatalog(t, src))
	assert.ErrorIs(t, err, ErrNoTileSize)
	assert.Equal(t, 1, report.Empty)

	_, _, err = NewAssembler(Options{Source: src}).Assemble(context.Background(), catalog.New())
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []SectorResult
}

func (o *recordingObserver) ObserveSector(r SectorResult) {
	o.mu.Lock()
	o.results = append(o.results, r)
	o.mu.Unlock()
}

func TestAssemble_Observer(t *testing.T) {
	src := &mapSource{tiles: map[scale.SectorID]*formats.Tile{
		{X: 0, Y: 0}: flatTile(2, 2, 1),
		{X: 0, Y: 1}: flatTile(2, 2, 2),
	}}
	obs := &recordingObserver{}

	_, report, err := NewAssembler(Options{Source: src, Observer: obs}).Assemble(context.Background(), memCatalog(t, src))
	require.NoError(t, err)
	require.Len(t, obs.results, 2)
	for _, r := range obs.results {
		assert.True(t, r.Placed())
	}
	assert.NotEqual(t, [16]byte{}, [16]byte(report.RunID))
}
