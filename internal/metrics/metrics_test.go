package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/internal/terrain"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/formats/sdattest"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

func TestResult(t *testing.T) {
	tests := []struct {
		res  terrain.SectorResult
		want string
	}{
		{terrain.SectorResult{}, ResultPlaced},
		{terrain.SectorResult{Kind: formats.KindEmptySector}, "EmptySector"},
		{terrain.SectorResult{Kind: formats.KindTruncatedData, Err: formats.ErrTruncatedData}, "TruncatedData"},
		{terrain.SectorResult{Err: errors.New("permission denied")}, ResultIOError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Result(tt.res))
	}
}

func TestObserveSector(t *testing.T) {
	m := New()
	id := scale.SectorID{X: 1}
	m.ObserveSector(terrain.SectorResult{ID: id, Duration: time.Millisecond})
	m.ObserveSector(terrain.SectorResult{ID: id, Duration: time.Millisecond})
	m.ObserveSector(terrain.SectorResult{ID: id, Kind: formats.KindFormatMismatch, Err: formats.ErrFormatMismatch})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sectors.WithLabelValues(ResultPlaced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sectors.WithLabelValues("FormatMismatch")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.decodeTime))
}

func TestAssemblyRun(t *testing.T) {
	dir := t.TempDir()
	sdattest.WriteFile(t, dir, "sd_0_0.sdat", sdattest.Sector{Width: 2, Height: 2, Heights: sdattest.Flat(2, 2, 1)}.Bytes())
	sdattest.WriteFile(t, dir, "sd_1_0.sdat", []byte("SDAT\x01"))
	cat, err := catalog.Scan(context.Background(), dir, catalog.Options{})
	require.NoError(t, err)

	m := New()
	grid, report, err := terrain.NewAssembler(terrain.Options{Workers: 1, Observer: m}).Assemble(context.Background(), cat)
	require.NoError(t, err)
	m.ObserveRun(grid, report)
	m.ObserveCache(3, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sectors.WithLabelValues(ResultPlaced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sectors.WithLabelValues("TruncatedData")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.coverage))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.gridCells))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cacheHits))

	path := filepath.Join(t.TempDir(), "sdat.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `sdat_sectors_total{result="placed"} 1`)
	assert.Contains(t, text, `sdat_sectors_total{result="TruncatedData"} 1`)
	assert.Contains(t, text, "sdat_grid_coverage_ratio 0.5")
	assert.Contains(t, text, "# TYPE sdat_sector_decode_seconds histogram")
}

func TestObserveRunWithoutGrid(t *testing.T) {
	m := New()
	m.ObserveRun(nil, &terrain.Report{Skipped: 4, Started: time.Now()})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.skipped))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.gridCells))
}

func TestWriteTextfileError(t *testing.T) {
	err := New().WriteTextfile(filepath.Join(t.TempDir(), "missing", "sdat.prom"))
	assert.Error(t, err)
}
