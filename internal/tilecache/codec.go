package tilecache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

// Cached tile layout, little-endian:
//
//	u8  version
//	u8  format
//	u8  flags (1 = empty, 2 = coords, 4 = water)
//	u32 width, u32 height
//	i32 sector x, i32 sector y
//	f32 samples[width*height]
//	water: f32 height, i32 height offset, i32 material offset, u16 len, material bytes
const (
	codecVersion = 1

	flagEmpty  = 1 << 0
	flagCoords = 1 << 1
	flagWater  = 1 << 2

	fixedSize = 3 + 4*4
)

var errCorrupt = errors.New("corrupt cached tile")

func marshalTile(t *formats.Tile) []byte {
	var flags byte
	if t.Empty {
		flags |= flagEmpty
	}
	if t.HasCoords {
		flags |= flagCoords
	}
	if t.Water != nil {
		flags |= flagWater
	}

	buf := make([]byte, 0, fixedSize+4*len(t.Samples)+16)
	buf = append(buf, codecVersion, byte(t.Format), flags)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.Width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.Height))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.SectorX))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.SectorY))
	for _, v := range t.Samples {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}

	if w := t.Water; w != nil {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(w.Height))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(w.HeightOffset)))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(w.MaterialOffset)))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(w.Material)))
		buf = append(buf, w.Material...)
	}
	return buf
}

func unmarshalTile(b []byte) (*formats.Tile, error) {
	if len(b) < fixedSize {
		return nil, fmt.Errorf("%w: %d bytes", errCorrupt, len(b))
	}
	if b[0] != codecVersion {
		return nil, fmt.Errorf("%w: version %d", errCorrupt, b[0])
	}
	flags := b[2]
	t := &formats.Tile{
		Format:    formats.Format(b[1]),
		Empty:     flags&flagEmpty != 0,
		HasCoords: flags&flagCoords != 0,
		Width:     int(binary.LittleEndian.Uint32(b[3:])),
		Height:    int(binary.LittleEndian.Uint32(b[7:])),
		SectorX:   int32(binary.LittleEndian.Uint32(b[11:])),
		SectorY:   int32(binary.LittleEndian.Uint32(b[15:])),
	}
	b = b[fixedSize:]

	n := t.Width * t.Height
	if n < 0 || len(b) < 4*n {
		return nil, fmt.Errorf("%w: %dx%d samples", errCorrupt, t.Width, t.Height)
	}
	t.Samples = make([]float32, n)
	for i := range t.Samples {
		t.Samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	b = b[4*n:]

	if flags&flagWater != 0 {
		if len(b) < 14 {
			return nil, fmt.Errorf("%w: water block", errCorrupt)
		}
		w := &formats.WaterInfo{
			Height:         math.Float32frombits(binary.LittleEndian.Uint32(b)),
			HeightOffset:   int(int32(binary.LittleEndian.Uint32(b[4:]))),
			MaterialOffset: int(int32(binary.LittleEndian.Uint32(b[8:]))),
		}
		l := int(binary.LittleEndian.Uint16(b[12:]))
		if len(b) < 14+l {
			return nil, fmt.Errorf("%w: material", errCorrupt)
		}
		w.Material = string(b[14 : 14+l])
		t.Water = w
	}
	return t, nil
}
