package terrain

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// SectorResult is the outcome of one sector in a run.
type SectorResult struct {
	ID       scale.SectorID
	Path     string
	Kind     formats.Kind // KindUnknown with a nil Err means placed
	Err      error
	Duration time.Duration
}

// Placed reports whether the sector's tile is in the grid.
func (r SectorResult) Placed() bool {
	return r.Err == nil && r.Kind != formats.KindEmptySector
}

// Observer receives per-sector results as they happen. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveSector(SectorResult)
}

// Report summarizes an assembly run.
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Duration time.Duration

	Sectors int // Entries in the catalog
	Placed  int
	Empty   int
	Skipped int // Not attempted because the run was cancelled or aborted

	Counts    map[formats.Kind]int
	Failed    []SectorResult // Ordered by SectorID
	Warnings  []catalog.Warning
	Cancelled bool

	mu  sync.Mutex
	err error
}

func newReport(cat *catalog.Catalog) *Report {
	return &Report{
		RunID:    uuid.New(),
		Started:  time.Now(),
		Sectors:  cat.Len(),
		Counts:   make(map[formats.Kind]int),
		Warnings: append([]catalog.Warning(nil), cat.Warnings...),
	}
}

func (r *Report) record(res SectorResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case res.Err != nil:
		r.Counts[res.Kind]++
		r.Failed = append(r.Failed, res)
		r.err = multierr.Append(r.err, res.Err)
	case res.Kind == formats.KindEmptySector:
		r.Counts[res.Kind]++
		r.Empty++
	default:
		r.Placed++
	}
}

func (r *Report) finish() {
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].ID.Less(r.Failed[j].ID) })
}

// Err returns every sector failure combined, or nil when all sectors succeeded.
// Use multierr.Errors to split it.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// FailedIDs returns the SectorIDs that failed, in order.
func (r *Report) FailedIDs() []scale.SectorID {
	ids := make([]scale.SectorID, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ID
	}
	return ids
}

// Summary renders counts by kind on one line.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d sectors placed", r.Placed, r.Sectors)
	for _, k := range formats.Kinds {
		if n := r.Counts[k]; n > 0 {
			fmt.Fprintf(&b, ", %s=%d", k, n)
		}
	}
	if n := r.Counts[formats.KindUnknown]; n > 0 {
		fmt.Fprintf(&b, ", IOError=%d", n)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(&b, ", skipped=%d", r.Skipped)
	}
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}
