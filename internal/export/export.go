// Package export encodes an assembled WorldGrid as a grayscale heightmap image.
//
// Images are north-up: the first image row is the northern edge of the grid. Cells without
// elevation are written as NoDataValue; an optional mask image tells them apart from real
// elevations that happen to encode to the same value.
package export

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/Faultbox/sdat-terrain/internal/terrain"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

// NoDataValue is the pixel value written for cells without elevation.
const NoDataValue = 0

// Default raw steps in meters per pixel unit.
const (
	DefaultStep16 = 1.0 / 128 // Precision of the legacy sector layout
	DefaultStep8  = 1.0
)

// Mode selects how elevations map to pixel values.
type Mode uint8

const (
	// ModeRaw writes round((h - Offset) / Step). Values that do not fit the bit depth are a
	// RangeOverflow unless Clip is set.
	ModeRaw Mode = iota
	// ModeNormalize stretches the grid's elevation range over 1..max. Zero stays no-data.
	ModeNormalize
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeNormalize:
		return "normalize"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return ModeRaw, nil
	case "normalize", "normalized":
		return ModeNormalize, nil
	default:
		return ModeRaw, fmt.Errorf("unknown export mode %q", s)
	}
}

// Options controls encoding.
type Options struct {
	Mode     Mode
	BitDepth int     // 8 or 16; zero means 16
	Clip     bool    // Clamp out-of-range values instead of failing
	Step     float64 // Raw mode only; zero means DefaultStep16 or DefaultStep8
	Offset   float64 // Raw mode only; elevation written as 0
	Mask     bool    // Also build a mask image
}

func (o Options) withDefaults() (Options, error) {
	switch o.BitDepth {
	case 0:
		o.BitDepth = 16
	case 8, 16:
	default:
		return o, fmt.Errorf("unsupported bit depth %d", o.BitDepth)
	}
	if o.Step < 0 || math.IsNaN(o.Step) || math.IsInf(o.Step, 0) {
		return o, fmt.Errorf("invalid step %v", o.Step)
	}
	if o.Step == 0 {
		o.Step = DefaultStep16
		if o.BitDepth == 8 {
			o.Step = DefaultStep8
		}
	}
	return o, nil
}

// Heightmap is an encoded grid.
type Heightmap struct {
	Image image.Image // *image.Gray16 or *image.Gray
	Mask  *image.Gray // 255 where the grid holds data; nil unless requested

	Options  Options // Effective options, defaults applied
	MaxValue int

	// Elevation range of the grid; meaningful only when HasData.
	Min, Max float32
	HasData  bool

	Coverage float64
	Clipped  int // Cells clamped by the clip policy

	grid *terrain.WorldGrid
}

// Encode converts grid into a heightmap image.
func Encode(grid *terrain.WorldGrid, opts Options) (*Heightmap, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	stats := grid.Stats()
	hm := &Heightmap{
		Options:  opts,
		MaxValue: 1<<opts.BitDepth - 1,
		Min:      stats.Min,
		Max:      stats.Max,
		HasData:  stats.Valid > 0,
		Coverage: stats.Coverage(),
		grid:     grid,
	}

	bounds := image.Rect(0, 0, grid.Width, grid.Height)
	var set func(x, y int, v uint16)
	if opts.BitDepth == 16 {
		img := image.NewGray16(bounds)
		set = func(x, y int, v uint16) { img.SetGray16(x, y, color.Gray16{Y: v}) }
		hm.Image = img
	} else {
		img := image.NewGray(bounds)
		set = func(x, y int, v uint16) { img.Pix[img.PixOffset(x, y)] = uint8(v) }
		hm.Image = img
	}
	if opts.Mask {
		hm.Mask = image.NewGray(bounds)
	}

	for y := 0; y < grid.Height; y++ {
		row := grid.Row(y)
		dstY := grid.Height - 1 - y // North up
		for x, h := range row {
			if formats.IsNoData(h) {
				set(x, dstY, NoDataValue)
				continue
			}
			v, err := hm.value(h)
			if err != nil {
				return nil, fmt.Errorf("cell (%d, %d): %w", x, y, err)
			}
			set(x, dstY, v)
			if hm.Mask != nil {
				hm.Mask.Pix[hm.Mask.PixOffset(x, dstY)] = 0xFF
			}
		}
	}
	return hm, nil
}

func (hm *Heightmap) value(h float32) (uint16, error) {
	top := float64(hm.MaxValue)

	if hm.Options.Mode == ModeNormalize {
		span := float64(hm.Max) - float64(hm.Min)
		if span <= 0 {
			return 1, nil
		}
		return uint16(1 + math.Round((float64(h)-float64(hm.Min))/span*(top-1))), nil
	}

	u := math.Round((float64(h) - hm.Options.Offset) / hm.Options.Step)
	if u >= 0 && u <= top {
		return uint16(u), nil
	}
	if !hm.Options.Clip {
		return 0, fmt.Errorf("%w: elevation %.3f m encodes to %.0f, outside 0..%d", formats.ErrRangeOverflow, h, u, hm.MaxValue)
	}
	hm.Clipped++
	if u < 0 {
		return 0, nil
	}
	return uint16(top), nil
}

// Elevation converts a pixel value back to meters. ok is false for NoDataValue in normalize
// mode, where zero never encodes an elevation.
func (hm *Heightmap) Elevation(v uint16) (h float64, ok bool) {
	if hm.Options.Mode == ModeNormalize {
		if v == NoDataValue {
			return 0, false
		}
		span := float64(hm.Max) - float64(hm.Min)
		return float64(hm.Min) + float64(v-1)/float64(hm.MaxValue-1)*span, true
	}
	return float64(v)*hm.Options.Step + hm.Options.Offset, true
}

// Pixel returns the value at image coordinates.
func (hm *Heightmap) Pixel(x, y int) uint16 {
	switch img := hm.Image.(type) {
	case *image.Gray16:
		return img.Gray16At(x, y).Y
	case *image.Gray:
		return uint16(img.GrayAt(x, y).Y)
	default:
		return 0
	}
}
