package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// ErrNotSectorName is returned by ParseName for files outside the naming convention.
var ErrNotSectorName = errors.New("not a sector file name")

// Sector file names:
//
//	name  = "sd" ( index | "_" coord "_" coord ) "." ext
//	index = digit { digit }
//	coord = [ "-" ] digit { digit }
//	ext   = "csdat" | "sdat"   (case-insensitive)
var sectorNameRe = regexp.MustCompile(`^sd(?:(\d+)|_(-?\d+)_(-?\d+))\.((?i:csdat|sdat))$`)

// Name is a parsed sector file name.
type Name struct {
	Format formats.Format

	// Linear sector number for "sd<N>" names; -1 for explicit coordinates.
	Index int

	// Explicit coordinates for "sd_<X>_<Y>" names.
	Explicit bool
	ID       scale.SectorID
}

// ParseName parses the base name of a sector file.
func ParseName(base string) (Name, error) {
	m := sectorNameRe.FindStringSubmatch(base)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %q", ErrNotSectorName, base)
	}

	n := Name{Index: -1, Format: formats.FormatSDAT}
	if len(m[4]) == len("csdat") {
		n.Format = formats.FormatCSDAT
	}

	if m[1] != "" {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return Name{}, fmt.Errorf("%w: sector number %q: %v", ErrNotSectorName, m[1], err)
		}
		n.Index = idx
		return n, nil
	}

	x, errX := strconv.Atoi(m[2])
	y, errY := strconv.Atoi(m[3])
	if err := errors.Join(errX, errY); err != nil {
		return Name{}, fmt.Errorf("%w: coordinates in %q: %v", ErrNotSectorName, base, err)
	}
	n.Explicit = true
	n.ID = scale.SectorID{X: x, Y: y}
	return n, nil
}
