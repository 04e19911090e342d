// Package sdattest builds synthetic sector files for tests.
//
// It is the inverse of the decoders in package formats: heights go in, file bytes come out.
package sdattest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/sdat-terrain/pkg/encoding"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

// DefaultEncoding stores heights as u16 in 1/128 m steps with 0xFFFF as no-data,
// matching the precision of the legacy layout.
var DefaultEncoding = formats.Encoding{
	Width:     2,
	Kind:      formats.SampleUnsigned,
	Scale:     1.0 / 128,
	Stride:    2,
	NoData:    0xFFFF,
	HasNoData: true,
}

// Chunk places a block of records in the tile.
type Chunk struct {
	Row, Col   int
	Rows, Cols int
	Codec      formats.Codec

	// Records replaces the generated records when non-nil. It is compressed with Codec.
	Records []byte
}

// Sector describes an SDAT container to encode.
type Sector struct {
	Version   formats.SDATVersion // Zero means 1.1
	Width     int
	Height    int
	HasCoords bool
	X, Y      int32
	Encoding  formats.Encoding // Zero means DefaultEncoding
	Heights   []float32        // Row-major, NaN encodes the no-data value
	Chunks    []Chunk          // Nil means RowChunks(Width, Height, 16, CodecRaw)
	Order     []int            // Physical order of the chunk table; nil keeps Chunks order
	Trailing  []byte           // Appended after the last payload

	// DeclaredChunks overrides the chunk count in the header when non-nil.
	DeclaredChunks *uint16
}

// RowChunks splits a tile into horizontal bands of rowsPerChunk rows.
func RowChunks(width, height, rowsPerChunk int, codec formats.Codec) []Chunk {
	var chunks []Chunk
	for row := 0; row < height; row += rowsPerChunk {
		rows := min(rowsPerChunk, height-row)
		chunks = append(chunks, Chunk{Row: row, Col: 0, Rows: rows, Cols: width, Codec: codec})
	}
	return chunks
}

// Heights fills a width x height grid from f.
func Heights(width, height int, f func(x, y int) float32) []float32 {
	out := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = f(x, y)
		}
	}
	return out
}

// Flat returns a grid where every cell has elevation h.
func Flat(width, height int, h float32) []float32 {
	return Heights(width, height, func(int, int) float32 { return h })
}

// Quantize returns the raw stored value for h under enc.
func Quantize(h float32, enc formats.Encoding) uint32 {
	if h != h {
		return enc.NoData
	}
	v := (float64(h) - float64(enc.Bias)) / float64(enc.Scale)
	switch enc.Kind {
	case formats.SampleFloat:
		return math.Float32bits(float32(v))
	case formats.SampleSigned:
		return uint32(int32(math.Round(v))) & widthMask(enc.Width)
	default:
		return uint32(max(int64(math.Round(v)), 0)) & widthMask(enc.Width)
	}
}

// Tolerance returns the largest error Quantize may introduce under enc.
func Tolerance(enc formats.Encoding) float32 {
	if enc.Kind == formats.SampleFloat {
		return 1e-3
	}
	return float32(math.Abs(float64(enc.Scale))) / 2
}

func widthMask(width uint8) uint32 {
	switch width {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

// Bytes encodes the sector.
func (s Sector) Bytes() []byte {
	version := s.Version
	if version == (formats.SDATVersion{}) {
		version = formats.SDATVersion{Major: 1, Minor: 1}
	}
	enc := s.Encoding
	if enc == (formats.Encoding{}) {
		enc = DefaultEncoding
	}
	if enc.Stride == 0 {
		enc.Stride = uint16(enc.Width)
	}
	chunks := s.Chunks
	if chunks == nil {
		chunks = RowChunks(s.Width, s.Height, 16, formats.CodecRaw)
	}
	order := s.Order
	if order == nil {
		order = make([]int, len(chunks))
		for i := range order {
			order[i] = i
		}
	}

	var flags uint16
	if s.HasCoords {
		flags |= formats.FlagHasCoords
	}
	if enc.HasNoData {
		flags |= formats.FlagHasNoData
	}

	count := uint16(len(chunks))
	if s.DeclaredChunks != nil {
		count = *s.DeclaredChunks
	}

	buf := new(bytes.Buffer)
	buf.WriteString(formats.SDATMagic)
	buf.WriteByte(version.Major)
	buf.WriteByte(version.Minor)
	binary.Write(buf, binary.LittleEndian, flags)
	binary.Write(buf, binary.LittleEndian, s.X)
	binary.Write(buf, binary.LittleEndian, s.Y)
	binary.Write(buf, binary.LittleEndian, uint16(s.Width))
	binary.Write(buf, binary.LittleEndian, uint16(s.Height))
	binary.Write(buf, binary.LittleEndian, count)
	buf.WriteByte(enc.Width)
	buf.WriteByte(uint8(enc.Kind))
	binary.Write(buf, binary.LittleEndian, enc.Scale)
	binary.Write(buf, binary.LittleEndian, enc.Bias)
	binary.Write(buf, binary.LittleEndian, enc.Stride)
	binary.Write(buf, binary.LittleEndian, uint16(0))
	binary.Write(buf, binary.LittleEndian, enc.NoData)

	// Payloads follow the table in physical order.
	payloads := make([][]byte, len(chunks))
	for i, c := range chunks {
		codec := c.Codec
		if !version.AtLeast(1, 1) {
			codec = formats.CodecRaw
		}
		recs := c.Records
		if recs == nil {
			recs = s.records(c, enc)
		}
		payloads[i] = compress(recs, codec)
	}

	entrySize := version.ChunkEntrySize()
	offset := uint32(formats.SDATHeaderSize + len(chunks)*entrySize)
	offsets := make([]uint32, len(chunks))
	for _, i := range order {
		offsets[i] = offset
		offset += uint32(len(payloads[i]))
	}

	for _, i := range order {
		c := chunks[i]
		binary.Write(buf, binary.LittleEndian, uint16(c.Row))
		binary.Write(buf, binary.LittleEndian, uint16(c.Col))
		binary.Write(buf, binary.LittleEndian, uint16(c.Rows))
		binary.Write(buf, binary.LittleEndian, uint16(c.Cols))
		binary.Write(buf, binary.LittleEndian, offsets[i])
		binary.Write(buf, binary.LittleEndian, uint32(len(payloads[i])))
		if entrySize >= 20 {
			codec := c.Codec
			if !version.AtLeast(1, 1) {
				codec = formats.CodecRaw
			}
			buf.Write([]byte{byte(codec), 0, 0, 0})
		}
	}
	for _, i := range order {
		buf.Write(payloads[i])
	}
	buf.Write(s.Trailing)

	return buf.Bytes()
}

// records serializes the cells covered by c; padding bytes of each record are set to 0xAB.
func (s Sector) records(c Chunk, enc formats.Encoding) []byte {
	stride := int(enc.Stride)
	out := make([]byte, c.Rows*c.Cols*stride)
	for r := 0; r < c.Rows; r++ {
		for col := 0; col < c.Cols; col++ {
			h := formats.NoData
			idx := (c.Row+r)*s.Width + c.Col + col
			if idx < len(s.Heights) {
				h = s.Heights[idx]
			}
			raw := Quantize(h, enc)
			rec := out[(r*c.Cols+col)*stride:]
			switch enc.Width {
			case 1:
				rec[0] = byte(raw)
			case 2:
				binary.LittleEndian.PutUint16(rec, uint16(raw))
			default:
				binary.LittleEndian.PutUint32(rec, raw)
			}
			for k := int(enc.Width); k < stride; k++ {
				rec[k] = 0xAB
			}
		}
	}
	return out
}

func compress(data []byte, codec formats.Codec) []byte {
	switch codec {
	case formats.CodecZlib:
		var out bytes.Buffer
		w := zlib.NewWriter(&out)
		w.Write(data)
		w.Close()
		return out.Bytes()
	case formats.CodecZstd:
		w, _ := zstd.NewWriter(nil)
		defer w.Close()
		return w.EncodeAll(data, nil)
	default:
		return data
	}
}

// CSDAT builds a legacy sector from 65x65 heights. Heights are stored in 1/128 m steps;
// a non-zero water height writes the water block and material path.
func CSDAT(heights []float32, water float32, material string) []byte {
	data := make([]byte, formats.CSDATTerrainOffset+formats.CSDATTerrainSize)

	binary.LittleEndian.PutUint32(data[formats.CSDATWaterOffset:], math.Float32bits(water))
	if material != "" {
		// The material string lives in the header area after the water height.
		copy(data[0x100:], encoding.UTF8ToFixedString(material, 128))
	}

	for i := 0; i < formats.CSDATResolution*formats.CSDATResolution; i++ {
		var h float32
		if i < len(heights) {
			h = heights[i]
		}
		raw := uint16(math.Round(float64(h) * formats.CSDATHeightDivisor))
		rec := data[formats.CSDATTerrainOffset+i*formats.CSDATRecordSize:]
		binary.LittleEndian.PutUint16(rec, raw)
		binary.LittleEndian.PutUint16(rec[2:], 0x0101)
	}
	return data
}

// WriteFile writes data into dir/name and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		tb.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		tb.Fatalf("writing %s: %v", path, err)
	}
	return path
}
