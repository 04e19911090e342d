package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/sdat-terrain/internal/logger"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// TieBreak selects which file wins when several claim the same SectorID.
type TieBreak uint8

// Tie-break rules.
const (
	TieBreakFirst  TieBreak = iota // Lexicographically first path (the first one walked)
	TieBreakNewest                 // Most recent modification time, then first path
)

// String returns the rule name.
func (t TieBreak) String() string {
	switch t {
	case TieBreakFirst:
		return "first"
	case TieBreakNewest:
		return "newest"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// ParseTieBreak converts a rule name into a TieBreak.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return TieBreakFirst, nil
	case "newest":
		return TieBreakNewest, nil
	default:
		return TieBreakFirst, fmt.Errorf("unknown tie-break rule %q", s)
	}
}

// Options controls a directory scan.
type Options struct {
	// Format overrides the format chosen by the file extension when not FormatAuto.
	Format formats.Format

	// Layout and grid size for linear sector numbers. Zero Columns/Rows are derived from the
	// highest sector number found.
	Layout  Layout
	Columns int
	Rows    int

	Recursive bool
	TieBreak  TieBreak

	// Strict turns duplicate SectorIDs into an error instead of applying TieBreak.
	Strict bool
}

type candidate struct {
	Entry
	name Name
}

// Scan indexes the sector files under dir.
//
// Files outside the naming convention are skipped with a warning. Duplicate SectorIDs are
// resolved with opts.TieBreak, or fail with a *ConflictError in strict mode.
func Scan(ctx context.Context, dir string, opts Options) (*Catalog, error) {
	cat := New()
	cat.Dir = dir

	var found []candidate
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		name, perr := ParseName(d.Name())
		if perr != nil {
			cat.warn(path, "does not match the sector naming convention")
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		c := candidate{
			Entry: Entry{
				Path:    path,
				Format:  name.Format,
				Index:   name.Index,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			},
			name: name,
		}
		if opts.Format != formats.FormatAuto {
			c.Format = opts.Format
		}
		found = append(found, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	placed, err := cat.place(found, opts)
	if err != nil {
		return nil, err
	}

	claims := make(map[scale.SectorID][]Entry)
	var order []scale.SectorID
	for _, c := range placed {
		if _, ok := claims[c.ID]; !ok {
			order = append(order, c.ID)
		}
		claims[c.ID] = append(claims[c.ID], c.Entry)
	}

	for _, id := range order {
		entries := claims[id]
		if len(entries) > 1 {
			winner, err := cat.resolve(id, entries, opts)
			if err != nil {
				return nil, err
			}
			entries = []Entry{winner}
		}
		e := entries[0]
		if err := cat.Add(&e); err != nil {
			return nil, err
		}
	}

	for _, w := range cat.Warnings {
		logger.Debug("scan warning", zap.String("path", w.Path), zap.String("reason", w.Reason))
	}
	logger.Info("sector index built",
		zap.String("dir", dir),
		zap.Int("sectors", cat.Len()),
		zap.Int("warnings", len(cat.Warnings)),
		zap.Int("conflicts", len(cat.Conflicts)))

	return cat, nil
}

// place assigns SectorIDs to candidates, resolving linear sector numbers through the layout.
// Numbers at or above MaxSectors, or that do not fit the grid, are dropped with a warning.
func (c *Catalog) place(found []candidate, opts Options) ([]candidate, error) {
	kept := make([]candidate, 0, len(found))
	maxIndex := -1
	for _, f := range found {
		if !f.name.Explicit {
			if f.Index < 0 || f.Index >= MaxSectors {
				c.warn(f.Path, "sector %d exceeds the %d sector limit", f.Index, MaxSectors)
				continue
			}
			maxIndex = max(maxIndex, f.Index)
		}
		kept = append(kept, f)
	}
	found = kept

	var grid *Grid
	if maxIndex >= 0 {
		columns, rows := gridDims(maxIndex+1, opts)
		g, err := NewGrid(opts.Layout, columns, rows)
		if err != nil {
			return nil, err
		}
		grid = g
		c.Layout, c.Columns, c.Rows = g.Layout, g.Columns, g.Rows
	}

	placed := make([]candidate, 0, len(found))
	for _, f := range found {
		if f.name.Explicit {
			f.ID = f.name.ID
			placed = append(placed, f)
			continue
		}
		id, ok := grid.SectorID(f.Index)
		if !ok {
			c.warn(f.Path, "sector %d does not fit the %dx%d %s grid", f.Index, grid.Columns, grid.Rows, grid.Layout)
			continue
		}
		f.ID = id
		placed = append(placed, f)
	}
	return placed, nil
}

func gridDims(n int, opts Options) (columns, rows int) {
	switch {
	case opts.Columns > 0 && opts.Rows > 0:
		return opts.Columns, opts.Rows
	case opts.Columns > 0:
		return opts.Columns, (n + opts.Columns - 1) / opts.Columns
	case opts.Rows > 0:
		return (n + opts.Rows - 1) / opts.Rows, opts.Rows
	default:
		return SuggestDims(n, opts.Layout)
	}
}

// resolve picks the authoritative file for a duplicated SectorID.
func (c *Catalog) resolve(id scale.SectorID, entries []Entry, opts Options) (Entry, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	if opts.Strict {
		return Entry{}, &ConflictError{ID: id, Paths: paths}
	}

	win := 0
	if opts.TieBreak == TieBreakNewest {
		for i, e := range entries {
			if e.ModTime.After(entries[win].ModTime) {
				win = i
			}
		}
	}

	conflict := Conflict{ID: id, Kept: entries[win].Path}
	for i, p := range paths {
		if i != win {
			conflict.Dropped = append(conflict.Dropped, p)
		}
	}
	c.Conflicts = append(c.Conflicts, conflict)
	c.warn(conflict.Kept, "sector %s also claimed by %s; kept this file (%s)", id, strings.Join(conflict.Dropped, ", "), opts.TieBreak)
	logger.Warn("conflicting sector",
		logger.Sector(id),
		zap.String("kept", conflict.Kept),
		zap.Strings("dropped", conflict.Dropped),
		zap.Stringer("tie_break", opts.TieBreak))

	return entries[win], nil
}
