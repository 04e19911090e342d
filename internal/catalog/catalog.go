// Package catalog builds the sector index of a dataset directory.
//
// A Catalog maps SectorIDs to sector files. Entries are kept ordered south to north, then
// west to east, so iteration order is stable across scans.
package catalog

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/btree"

	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// Entry is one indexed sector file.
type Entry struct {
	ID      scale.SectorID
	Path    string
	Format  formats.Format
	Index   int // Linear sector number, -1 for explicit names
	Size    int64
	ModTime time.Time
}

// ConflictError reports two or more files claiming the same SectorID.
type ConflictError struct {
	ID    scale.SectorID
	Paths []string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("sector %s claimed by %d files: %s", e.ID, len(e.Paths), strings.Join(e.Paths, ", "))
}

// Unwrap classifies the conflict as ConflictingSector.
func (e *ConflictError) Unwrap() error {
	return formats.ErrConflictingSector
}

// Conflict records how a duplicate SectorID was resolved.
type Conflict struct {
	ID      scale.SectorID
	Kept    string
	Dropped []string
}

// Warning is a non-fatal scan finding.
type Warning struct {
	Path   string
	Reason string
}

// String returns "path: reason".
func (w Warning) String() string {
	return w.Path + ": " + w.Reason
}

// Catalog is an ordered SectorID -> file index.
type Catalog struct {
	Dir string

	// Sector grid used to resolve linear sector numbers; zero when every name was explicit.
	Layout  Layout
	Columns int
	Rows    int

	Warnings  []Warning
	Conflicts []Conflict

	entries *btree.BTreeG[*Entry]
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		entries: btree.NewG[*Entry](16, func(a, b *Entry) bool {
			return a.ID.Less(b.ID)
		}),
	}
}

// Add inserts e. It returns a *ConflictError if the SectorID is already indexed.
func (c *Catalog) Add(e *Entry) error {
	if old, ok := c.entries.Get(e); ok {
		return &ConflictError{ID: e.ID, Paths: []string{old.Path, e.Path}}
	}
	c.entries.ReplaceOrInsert(e)
	return nil
}

// Len returns the number of indexed sectors.
func (c *Catalog) Len() int {
	return c.entries.Len()
}

// Get returns the entry for id.
func (c *Catalog) Get(id scale.SectorID) (*Entry, bool) {
	return c.entries.Get(&Entry{ID: id})
}

// All iterates the entries in SectorID order.
func (c *Catalog) All() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		c.entries.Ascend(func(e *Entry) bool {
			return yield(e)
		})
	}
}

// Entries returns the entries in SectorID order.
func (c *Catalog) Entries() []*Entry {
	out := make([]*Entry, 0, c.entries.Len())
	for e := range c.All() {
		out = append(out, e)
	}
	return out
}

// Bounds returns the smallest rectangle of SectorIDs containing every entry.
// ok is false for an empty catalog.
func (c *Catalog) Bounds() (lo, hi scale.SectorID, ok bool) {
	for e := range c.All() {
		if !ok {
			lo, hi, ok = e.ID, e.ID, true
			continue
		}
		lo.X = min(lo.X, e.ID.X)
		lo.Y = min(lo.Y, e.ID.Y)
		hi.X = max(hi.X, e.ID.X)
		hi.Y = max(hi.Y, e.ID.Y)
	}
	return lo, hi, ok
}

func (c *Catalog) warn(path, format string, args ...any) {
	c.Warnings = append(c.Warnings, Warning{Path: path, Reason: fmt.Sprintf(format, args...)})
}
