package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/sdat-terrain/pkg/encoding"
)

// ErrTruncatedCSDATData is returned when a legacy sector is shorter than its terrain block.
var ErrTruncatedCSDATData = errors.New("truncated CSDAT data")

// Legacy layout constants.
const (
	CSDATTerrainOffset = 708 // Start of the height records
	CSDATResolution    = 65  // Samples per axis
	CSDATRecordSize    = 4   // u16 height + u16 flags
	CSDATHeightDivisor = 128 // Stored units per meter

	// CSDATTerrainSize is the byte length of the height block.
	CSDATTerrainSize = CSDATResolution * CSDATResolution * CSDATRecordSize

	CSDATWaterOffset = 0xB0 // float32 water plane height
)

// Water material paths are stored as NUL-terminated Latin-1 strings with one of these prefixes.
var csdatWaterMaterialPrefixes = [][]byte{
	[]byte(`graphics\_materials\editor\water_`),
	[]byte(`graphics_materials\editor\water_`),
}

// maxMaterialLen bounds the material field.
const maxMaterialLen = 128

// DecodeCSDAT decodes a legacy sector. Heights are u16 little-endian values at
// CSDATTerrainOffset, one per 4-byte record, divided by CSDATHeightDivisor.
// Bytes after the terrain block are ignored.
func DecodeCSDAT(data []byte) (*Tile, error) {
	need := CSDATTerrainOffset + CSDATTerrainSize
	if len(data) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedCSDATData, need, len(data))
	}

	tile := &Tile{
		Width:   CSDATResolution,
		Height:  CSDATResolution,
		Samples: make([]float32, CSDATResolution*CSDATResolution),
		Format:  FormatCSDAT,
	}

	block := data[CSDATTerrainOffset:need]
	for i := range tile.Samples {
		raw := binary.LittleEndian.Uint16(block[i*CSDATRecordSize:])
		tile.Samples[i] = float32(raw) / CSDATHeightDivisor
	}

	tile.Water = ParseCSDATWater(data)
	return tile, nil
}

// ParseCSDATWater reads the water block of a legacy sector.
// Returns nil when the file is too short to hold a water height.
func ParseCSDATWater(data []byte) *WaterInfo {
	if len(data) < CSDATWaterOffset+4 {
		return nil
	}

	bits := binary.LittleEndian.Uint32(data[CSDATWaterOffset:])
	w := &WaterInfo{
		Height:         math.Float32frombits(bits),
		HeightOffset:   CSDATWaterOffset,
		MaterialOffset: -1,
	}
	if !w.HasWater() {
		return w
	}

	for _, prefix := range csdatWaterMaterialPrefixes {
		pos := bytes.Index(data, prefix)
		if pos < 0 {
			continue
		}
		field := data[pos:min(len(data), pos+maxMaterialLen)]
		w.Material = encoding.FixedStringToUTF8(field)
		w.MaterialOffset = pos
		break
	}

	return w
}
