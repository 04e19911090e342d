// Package metrics exposes Prometheus metrics for reconstruction runs.
//
// Runs are batch jobs, so metrics live in a private registry and are dumped to a
// node-exporter textfile at the end instead of being served over HTTP.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Faultbox/sdat-terrain/internal/terrain"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

const namespace = "sdat"

// Result label values besides the failure kinds.
const (
	ResultPlaced  = "placed"
	ResultIOError = "io_error"
)

// Metrics collects run metrics. It implements terrain.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	sectors     *prometheus.CounterVec
	decodeTime  prometheus.Histogram
	runs        prometheus.Counter
	runSeconds  prometheus.Gauge
	coverage    prometheus.Gauge
	gridCells   prometheus.Gauge
	skipped     prometheus.Gauge
	cacheHits   prometheus.Gauge
	cacheMisses prometheus.Gauge
	lastRun     prometheus.Gauge
}

// New creates the metrics and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		sectors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sectors_total",
			Help:      "Sectors processed, by result.",
		}, []string{"result"}),
		decodeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sector_decode_seconds",
			Help:      "Time to load, decode and place one sector.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed reconstruction runs.",
		}),
		runSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_coverage_ratio",
			Help:      "Fraction of grid cells holding an elevation after the last run.",
		}),
		gridCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_cells",
			Help:      "Cells in the last assembled grid.",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sectors_skipped",
			Help:      "Sectors not attempted in the last run.",
		}),
		cacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tile_cache_hits",
			Help:      "Tile cache hits in the last run.",
		}),
		cacheMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tile_cache_misses",
			Help:      "Tile cache misses in the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	m.Registry.MustRegister(
		m.sectors, m.decodeTime, m.runs, m.runSeconds, m.coverage,
		m.gridCells, m.skipped, m.cacheHits, m.cacheMisses, m.lastRun,
	)
	return m
}

// Result returns the result label of a sector outcome.
func Result(res terrain.SectorResult) string {
	switch {
	case res.Placed():
		return ResultPlaced
	case res.Kind == formats.KindUnknown:
		return ResultIOError
	default:
		return res.Kind.String()
	}
}

// ObserveSector implements terrain.Observer.
func (m *Metrics) ObserveSector(res terrain.SectorResult) {
	m.sectors.WithLabelValues(Result(res)).Inc()
	if res.Duration > 0 {
		m.decodeTime.Observe(res.Duration.Seconds())
	}
}

// ObserveRun records the outcome of a finished run. grid may be nil.
func (m *Metrics) ObserveRun(grid *terrain.WorldGrid, report *terrain.Report) {
	m.runs.Inc()
	m.runSeconds.Set(report.Duration.Seconds())
	m.skipped.Set(float64(report.Skipped))
	m.lastRun.Set(float64(report.Started.Add(report.Duration).Unix()))
	if grid != nil {
		m.coverage.Set(grid.Stats().Coverage())
		m.gridCells.Set(float64(grid.Width * grid.Height))
	}
}

// ObserveCache records tile cache counters.
func (m *Metrics) ObserveCache(hits, misses int64) {
	m.cacheHits.Set(float64(hits))
	m.cacheMisses.Set(float64(misses))
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
