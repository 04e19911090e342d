package terrain

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/internal/logger"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// Assembly errors.
var (
	ErrEmptyCatalog = errors.New("catalog has no sectors")
	ErrNoTileSize   = errors.New("no sector established the tile size")
)

// Options controls an assembly run.
type Options struct {
	// Workers bounds concurrent sector decodes; zero means runtime.NumCPU().
	Workers int

	// Strict aborts on the first failing sector and returns its error unchanged.
	Strict bool

	// Tile size. Zero means taken from the first non-empty decoded tile.
	TileWidth  int
	TileHeight int

	// Source loads tiles; nil means FileSource{Timeout: ReadTimeout}.
	Source      TileSource
	ReadTimeout time.Duration

	Observer Observer // Optional
}

// Assembler builds WorldGrids from catalogs.
type Assembler struct {
	opts Options
	src  TileSource
}

// NewAssembler returns an Assembler for opts.
func NewAssembler(opts Options) *Assembler {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	src := opts.Source
	if src == nil {
		src = FileSource{Timeout: opts.ReadTimeout}
	}
	return &Assembler{opts: opts, src: src}
}

// run carries the state of one Assemble call.
type run struct {
	a      *Assembler
	grid   *WorldGrid
	report *Report
	width  int
	height int

	mu         sync.Mutex
	placements []Placement
}

// Assemble decodes every sector of cat and stitches the tiles into a WorldGrid.
//
// Sector failures are recorded in the Report and leave their region as no-data. In strict
// mode the first failure aborts the run and is returned as is. When ctx is cancelled the
// partially built grid is returned together with ctx's error; tiles already placed stay valid.
func (a *Assembler) Assemble(ctx context.Context, cat *catalog.Catalog) (*WorldGrid, *Report, error) {
	report := newReport(cat)
	defer func() { report.Duration = time.Since(report.Started) }()

	lo, hi, ok := cat.Bounds()
	if !ok {
		return nil, report, ErrEmptyCatalog
	}
	log := logger.ForRun(report.RunID)
	entries := cat.Entries()

	r := &run{a: a, report: report, width: a.opts.TileWidth, height: a.opts.TileHeight}

	// Probe sequentially until a tile fixes the dimensions. Probed tiles are reused below.
	probed := make(map[scale.SectorID]*formats.Tile)
	probeErr := make(map[scale.SectorID]error)
	if r.width <= 0 || r.height <= 0 {
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				report.Cancelled = true
				report.Skipped = len(entries)
				return nil, report, err
			}
			tile, err := a.src.Load(ctx, e)
			if err != nil {
				if a.opts.Strict {
					r.fail(e, err, 0)
					return nil, report, err
				}
				probeErr[e.ID] = err
				continue
			}
			probed[e.ID] = tile
			if !tile.Empty {
				r.width, r.height = tile.Width, tile.Height
				break
			}
		}
		if r.width <= 0 || r.height <= 0 {
			for _, e := range entries {
				if err, ok := probeErr[e.ID]; ok {
					r.fail(e, err, 0)
				} else if _, ok := probed[e.ID]; ok {
					r.empty(e, probed[e.ID], 0)
				}
			}
			report.finish()
			return nil, report, ErrNoTileSize
		}
	}

	grid, err := NewWorldGrid(scale.NewContext(r.width, r.height, lo), lo, hi)
	if err != nil {
		return nil, report, err
	}
	r.grid = grid
	log.Info("assembling world grid",
		zap.Int("sectors", len(entries)),
		zap.Int("tile_width", r.width),
		zap.Int("tile_height", r.height),
		zap.Int("width", grid.Width),
		zap.Int("height", grid.Height),
		zap.Int("workers", a.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	scheduled := 0
	for _, e := range entries {
		// Cancellation is honoured between sectors.
		if gctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			if gctx.Err() != nil {
				r.skip()
				return nil
			}
			return r.sector(gctx, e, probed[e.ID], probeErr[e.ID])
		})
	}
	werr := g.Wait()
	report.Skipped += len(entries) - scheduled

	grid.finish(r.placements)
	report.finish()

	if err := ctx.Err(); err != nil {
		report.Cancelled = true
		log.Warn("assembly cancelled", zap.String("summary", report.Summary()))
		return grid, report, err
	}
	if werr != nil {
		log.Error("assembly aborted", zap.Error(werr))
		return grid, report, werr
	}

	stats := grid.Stats()
	log.Info("world grid assembled",
		zap.String("summary", report.Summary()),
		zap.Float64("coverage", stats.Coverage()),
		zap.Duration("took", time.Since(report.Started)))
	return grid, report, nil
}

// sector decodes and places one entry. It returns a non-nil error only in strict mode.
func (r *run) sector(ctx context.Context, e *catalog.Entry, tile *formats.Tile, loadErr error) error {
	start := time.Now()

	if tile == nil && loadErr == nil {
		tile, loadErr = r.a.src.Load(ctx, e)
	}
	if loadErr != nil {
		if ctx.Err() != nil {
			r.skip()
			return nil
		}
		return r.fail(e, loadErr, time.Since(start))
	}

	if tile.Empty {
		r.empty(e, tile, time.Since(start))
		return nil
	}

	if tile.Width != r.width || tile.Height != r.height {
		return r.fail(e, &formats.DecodeError{
			Kind: formats.KindFormatMismatch,
			Path: e.Path,
			Err:  fmt.Errorf("tile is %dx%d, dataset uses %dx%d", tile.Width, tile.Height, r.width, r.height),
		}, time.Since(start))
	}

	if tile.HasCoords && (int(tile.SectorX) != e.ID.X || int(tile.SectorY) != e.ID.Y) {
		return r.fail(e, &formats.DecodeError{
			Kind: formats.KindPlacementConflict,
			Path: e.Path,
			Err:  fmt.Errorf("header declares sector (%d, %d), index places it at %s", tile.SectorX, tile.SectorY, e.ID),
		}, time.Since(start))
	}

	if !r.grid.claim(e.ID) {
		return r.fail(e, &formats.DecodeError{
			Kind: formats.KindPlacementConflict,
			Path: e.Path,
			Err:  fmt.Errorf("sector %s region already claimed", e.ID),
		}, time.Since(start))
	}
	if err := r.grid.blit(e.ID, tile); err != nil {
		return r.fail(e, &formats.DecodeError{Kind: formats.KindPlacementConflict, Path: e.Path, Err: err}, time.Since(start))
	}

	r.place(e, tile, false)
	r.observe(SectorResult{ID: e.ID, Path: e.Path, Duration: time.Since(start)})
	return nil
}

func (r *run) place(e *catalog.Entry, tile *formats.Tile, empty bool) {
	p := Placement{
		ID:     e.ID,
		Path:   e.Path,
		Format: tile.Format,
		Empty:  empty,
		Water:  tile.Water,
	}
	if r.grid != nil {
		p.Origin = r.grid.Scale.SectorIDToGridOrigin(e.ID)
	}
	r.mu.Lock()
	r.placements = append(r.placements, p)
	r.mu.Unlock()
}

func (r *run) empty(e *catalog.Entry, tile *formats.Tile, d time.Duration) {
	r.place(e, tile, true)
	r.observe(SectorResult{ID: e.ID, Path: e.Path, Kind: formats.KindEmptySector, Duration: d})
	logger.Debug("empty sector", logger.Sector(e.ID), zap.String("path", e.Path))
}

// fail records a failed sector. In strict mode the error is returned to abort the run.
func (r *run) fail(e *catalog.Entry, err error, d time.Duration) error {
	res := SectorResult{ID: e.ID, Path: e.Path, Kind: formats.KindOf(err), Err: err, Duration: d}
	r.observe(res)
	logger.Warn("sector failed",
		logger.Sector(e.ID),
		zap.String("path", e.Path),
		zap.Stringer("kind", res.Kind),
		zap.Error(err))
	if r.a.opts.Strict {
		return err
	}
	return nil
}

func (r *run) skip() {
	r.report.mu.Lock()
	r.report.Skipped++
	r.report.mu.Unlock()
}

func (r *run) observe(res SectorResult) {
	r.report.record(res)
	if r.a.opts.Observer != nil {
		r.a.opts.Observer.ObserveSector(res)
	}
}
