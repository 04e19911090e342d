package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/internal/logger"
	"github.com/Faultbox/sdat-terrain/internal/metrics"
	"github.com/Faultbox/sdat-terrain/internal/terrain"
	"github.com/Faultbox/sdat-terrain/internal/tilecache"
)

// pipeline wires the scan, tile source, assembler and metrics for one command.
type pipeline struct {
	cache   *tilecache.Cache
	metrics *metrics.Metrics
	source  terrain.TileSource
}

func openPipeline() (*pipeline, error) {
	p := &pipeline{
		metrics: metrics.New(),
		source:  terrain.FileSource{Timeout: cfg.Assembly.ReadTimeout},
	}
	if cfg.Cache.Dir != "" {
		c, err := tilecache.Open(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		p.cache = c
		p.source = tilecache.Source{Cache: c, Next: p.source}
	}
	return p, nil
}

func (p *pipeline) Close() {
	if p.cache == nil {
		return
	}
	if err := p.cache.Close(); err != nil {
		logger.Warn("closing tile cache", zap.Error(err))
	}
}

func (p *pipeline) scan(ctx context.Context, dir string) (*catalog.Catalog, error) {
	opts, err := cfg.ScanOptions()
	if err != nil {
		return nil, err
	}
	return catalog.Scan(ctx, dir, opts)
}

// assemble builds the grid and records run metrics. The grid may be partial when err is a
// cancellation.
func (p *pipeline) assemble(ctx context.Context, cat *catalog.Catalog) (*terrain.WorldGrid, *terrain.Report, error) {
	opts := cfg.AssemblyOptions()
	opts.Source = p.source
	opts.Observer = p.metrics

	grid, report, err := terrain.NewAssembler(opts).Assemble(ctx, cat)

	p.metrics.ObserveRun(grid, report)
	if p.cache != nil {
		p.metrics.ObserveCache(p.cache.Stats())
	}
	if path := cfg.Metrics.Textfile; path != "" {
		if werr := p.metrics.WriteTextfile(path); werr != nil {
			logger.Warn("metrics not written", zap.String("path", path), zap.Error(werr))
		}
	}
	return grid, report, err
}

// reconstruct scans dir and assembles it.
func (p *pipeline) reconstruct(ctx context.Context, dir string) (*terrain.WorldGrid, *terrain.Report, error) {
	cat, err := p.scan(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	return p.assemble(ctx, cat)
}

func printReport(w io.Writer, r *terrain.Report) {
	fmt.Fprintf(w, "Run:      %s\n", r.RunID)
	fmt.Fprintf(w, "Result:   %s\n", r.Summary())
	fmt.Fprintf(w, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	if r.Empty > 0 {
		fmt.Fprintf(w, "Empty:    %d sectors\n", r.Empty)
	}

	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "\nFailed sectors:\n")
		for _, f := range r.Failed {
			fmt.Fprintf(w, "  %-12s %-18s %v\n", f.ID, kindName(f), f.Err)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "\nSkipped files:\n")
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", wn)
		}
	}
}

func kindName(f terrain.SectorResult) string {
	if name := metrics.Result(f); name != metrics.ResultIOError {
		return name
	}
	return "IOError"
}
