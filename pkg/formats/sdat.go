package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SDAT format errors.
var (
	ErrInvalidSDATMagic       = errors.New("invalid SDAT magic: expected 'SDAT'")
	ErrUnsupportedSDATVersion = errors.New("unsupported SDAT version")
	ErrTruncatedSDATData      = errors.New("truncated SDAT data")
	ErrInvalidSDATEncoding    = errors.New("invalid SDAT sample encoding")
	ErrInvalidSDATDimensions  = errors.New("invalid SDAT dimensions")
	ErrChunkOutOfBounds       = errors.New("chunk outside tile bounds")
	ErrChunkOverlap           = errors.New("chunks overlap")
	ErrChunkTooLarge          = errors.New("chunk exceeds decoded size limit")
)

// SDAT layout constants.
const (
	SDATMagic      = "SDAT"
	SDATHeaderSize = 40

	// MaxSectorDimension bounds the per-axis resolution accepted from a header.
	MaxSectorDimension = 4096

	// MaxRecordStride bounds the bytes per stored record.
	MaxRecordStride = 64
)

// Header flags.
const (
	FlagHasCoords uint16 = 1 << 0
	FlagHasNoData uint16 = 1 << 1
)

// SDATVersion represents the SDAT container version.
type SDATVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v SDATVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v SDATVersion) AtLeast(major, minor uint8) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// Supported returns true for the versions this package can decode (1.0 and 1.1).
func (v SDATVersion) Supported() bool {
	return v.Major == 1 && v.Minor <= 1
}

// ChunkEntrySize returns the size of one chunk table entry for this version.
func (v SDATVersion) ChunkEntrySize() int {
	if v.AtLeast(1, 1) {
		return 20
	}
	return 16
}

// SampleKind is the numeric interpretation of a stored sample.
type SampleKind uint8

// Sample kinds.
const (
	SampleUnsigned SampleKind = 0
	SampleSigned   SampleKind = 1
	SampleFloat    SampleKind = 2
)

// String returns the sample kind name.
func (k SampleKind) String() string {
	switch k {
	case SampleUnsigned:
		return "unsigned"
	case SampleSigned:
		return "signed"
	case SampleFloat:
		return "float"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Encoding describes how stored samples map to meters.
type Encoding struct {
	Width     uint8 // Bytes per sample: 1, 2 or 4
	Kind      SampleKind
	Scale     float32 // Meters per stored unit
	Bias      float32 // Meters added after scaling
	Stride    uint16  // Bytes per record; trailing record bytes are ignored
	NoData    uint32  // Raw value marking missing samples
	HasNoData bool
}

// Validate checks that the encoding is one the decoder understands.
func (e Encoding) Validate() error {
	switch e.Width {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%w: sample width %d", ErrInvalidSDATEncoding, e.Width)
	}
	switch e.Kind {
	case SampleUnsigned, SampleSigned:
	case SampleFloat:
		if e.Width != 4 {
			return fmt.Errorf("%w: float samples must be 4 bytes, got %d", ErrInvalidSDATEncoding, e.Width)
		}
	default:
		return fmt.Errorf("%w: sample kind %d", ErrInvalidSDATEncoding, e.Kind)
	}
	if int(e.Stride) < int(e.Width) {
		return fmt.Errorf("%w: stride %d smaller than sample width %d", ErrInvalidSDATEncoding, e.Stride, e.Width)
	}
	if e.Stride > MaxRecordStride {
		return fmt.Errorf("%w: stride %d exceeds %d", ErrInvalidSDATEncoding, e.Stride, MaxRecordStride)
	}
	if math.IsNaN(float64(e.Scale)) || math.IsInf(float64(e.Scale), 0) || e.Scale == 0 {
		return fmt.Errorf("%w: scale %v", ErrInvalidSDATEncoding, e.Scale)
	}
	return nil
}

// raw returns the stored bits of a record, zero-extended.
func (e Encoding) raw(rec []byte) uint32 {
	switch e.Width {
	case 1:
		return uint32(rec[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(rec))
	default:
		return binary.LittleEndian.Uint32(rec)
	}
}

// Sample decodes one record into meters.
func (e Encoding) Sample(rec []byte) float32 {
	bits := e.raw(rec)
	if e.HasNoData && bits == e.NoData {
		return NoData
	}

	var v float64
	switch e.Kind {
	case SampleFloat:
		f := math.Float32frombits(bits)
		if f != f {
			return NoData
		}
		v = float64(f)
	case SampleSigned:
		switch e.Width {
		case 1:
			v = float64(int8(bits))
		case 2:
			v = float64(int16(bits))
		default:
			v = float64(int32(bits))
		}
	default:
		v = float64(bits)
	}
	return float32(v*float64(e.Scale) + float64(e.Bias))
}

// SDATHeader is the fixed header of an SDAT container.
type SDATHeader struct {
	Version    SDATVersion
	Flags      uint16
	SectorX    int32
	SectorY    int32
	Width      uint16
	Height     uint16
	ChunkCount uint16
	Encoding   Encoding
}

// HasCoords reports whether the header declares the sector coordinates.
func (h *SDATHeader) HasCoords() bool {
	return h.Flags&FlagHasCoords != 0
}

// IsEmpty reports whether the header describes a sector with no samples.
func (h *SDATHeader) IsEmpty() bool {
	return h.Width == 0 || h.Height == 0 || h.ChunkCount == 0
}

// SDATChunk is one entry of the chunk table.
type SDATChunk struct {
	Row    uint16 // First tile row covered
	Col    uint16 // First tile column covered
	Rows   uint16
	Cols   uint16
	Offset uint32 // Absolute file offset of the payload
	Length uint32 // Stored payload length
	Codec  Codec  // Always CodecRaw before 1.1
}

// Cells returns the number of cells the chunk covers.
func (c SDATChunk) Cells() int {
	return int(c.Rows) * int(c.Cols)
}

// SDAT is a parsed container: header and chunk table, without decoded samples.
type SDAT struct {
	Header SDATHeader
	Chunks []SDATChunk
}

// rawSDATHeader mirrors the on-disk header after the magic.
type rawSDATHeader struct {
	Major      uint8
	Minor      uint8
	Flags      uint16
	SectorX    int32
	SectorY    int32
	Width      uint16
	Height     uint16
	ChunkCount uint16
	SampleSize uint8
	SampleKind uint8
	Scale      float32
	Bias       float32
	Stride     uint16
	Reserved   uint16
	NoData     uint32
}

// HasSDATMagic reports whether data starts with the SDAT magic.
func HasSDATMagic(data []byte) bool {
	return len(data) >= len(SDATMagic) && string(data[:len(SDATMagic)]) == SDATMagic
}

// ParseSDAT parses the header and chunk table of an SDAT container.
// Chunk payloads are not touched; use DecodeSDAT for samples.
func ParseSDAT(data []byte) (*SDAT, error) {
	if !HasSDATMagic(data) {
		return nil, ErrInvalidSDATMagic
	}
	if len(data) < SDATHeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedSDATData, SDATHeaderSize, len(data))
	}

	var raw rawSDATHeader
	if err := binary.Read(bytes.NewReader(data[len(SDATMagic):SDATHeaderSize]), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedSDATData)
	}

	version := SDATVersion{Major: raw.Major, Minor: raw.Minor}
	if !version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSDATVersion, version)
	}

	enc := Encoding{
		Width:     raw.SampleSize,
		Kind:      SampleKind(raw.SampleKind),
		Scale:     raw.Scale,
		Bias:      raw.Bias,
		Stride:    raw.Stride,
		NoData:    raw.NoData,
		HasNoData: raw.Flags&FlagHasNoData != 0,
	}
	if enc.Scale == 0 {
		enc.Scale = 1
	}
	if enc.Stride == 0 {
		enc.Stride = uint16(enc.Width)
	}
	if err := enc.Validate(); err != nil {
		return nil, err
	}

	if raw.Width > MaxSectorDimension || raw.Height > MaxSectorDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSDATDimensions, raw.Width, raw.Height)
	}

	s := &SDAT{
		Header: SDATHeader{
			Version:    version,
			Flags:      raw.Flags,
			SectorX:    raw.SectorX,
			SectorY:    raw.SectorY,
			Width:      raw.Width,
			Height:     raw.Height,
			ChunkCount: raw.ChunkCount,
			Encoding:   enc,
		},
	}
	if s.Header.IsEmpty() {
		return s, nil
	}

	entrySize := version.ChunkEntrySize()
	tableEnd := SDATHeaderSize + int(raw.ChunkCount)*entrySize
	if tableEnd > len(data) {
		return nil, fmt.Errorf("%w: chunk table needs %d bytes, have %d", ErrTruncatedSDATData, tableEnd, len(data))
	}

	s.Chunks = make([]SDATChunk, raw.ChunkCount)
	for i := range s.Chunks {
		e := data[SDATHeaderSize+i*entrySize:]
		c := SDATChunk{
			Row:    binary.LittleEndian.Uint16(e[0:]),
			Col:    binary.LittleEndian.Uint16(e[2:]),
			Rows:   binary.LittleEndian.Uint16(e[4:]),
			Cols:   binary.LittleEndian.Uint16(e[6:]),
			Offset: binary.LittleEndian.Uint32(e[8:]),
			Length: binary.LittleEndian.Uint32(e[12:]),
		}
		if entrySize >= 20 {
			c.Codec = Codec(e[16])
		}
		s.Chunks[i] = c
	}

	return s, nil
}

// DecodeSDAT decodes an SDAT container into a tile.
//
// Each chunk is placed using its own Row/Col fields; the order of the table does not matter.
// Chunks must stay inside the tile and must not overlap. Cells covered by no chunk stay no-data.
func DecodeSDAT(data []byte) (*Tile, error) {
	s, err := ParseSDAT(data)
	if err != nil {
		return nil, err
	}
	h := &s.Header

	if h.IsEmpty() {
		tile := NewEmptyTile(int(h.Width), int(h.Height))
		if h.Width == 0 || h.Height == 0 {
			tile.Width, tile.Height = 0, 0
			tile.Samples = nil
		}
		tile.Empty = true
		tile.Format = FormatSDAT
		setCoords(tile, h)
		return tile, nil
	}

	width, height := int(h.Width), int(h.Height)
	tile := NewEmptyTile(width, height)
	tile.Format = FormatSDAT
	setCoords(tile, h)

	covered := make([]bool, width*height)
	stride := int(h.Encoding.Stride)

	for i, c := range s.Chunks {
		if c.Rows == 0 || c.Cols == 0 {
			continue
		}
		if int(c.Row)+int(c.Rows) > height || int(c.Col)+int(c.Cols) > width {
			return nil, fmt.Errorf("%w: chunk %d covers rows %d+%d cols %d+%d of %dx%d",
				ErrChunkOutOfBounds, i, c.Row, c.Rows, c.Col, c.Cols, width, height)
		}

		want := c.Cells() * stride
		if want > maxChunkPayload {
			return nil, fmt.Errorf("%w: chunk %d needs %d bytes, limit is %d", ErrChunkTooLarge, i, want, maxChunkPayload)
		}

		end := uint64(c.Offset) + uint64(c.Length)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: chunk %d payload ends at %d, file has %d bytes", ErrTruncatedSDATData, i, end, len(data))
		}

		payload, err := c.Codec.inflate(data[c.Offset:end], want)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		for r := 0; r < int(c.Rows); r++ {
			row := int(c.Row) + r
			for col := 0; col < int(c.Cols); col++ {
				idx := row*width + int(c.Col) + col
				if covered[idx] {
					return nil, fmt.Errorf("%w: chunk %d at cell (%d, %d)", ErrChunkOverlap, i, int(c.Col)+col, row)
				}
				covered[idx] = true

				off := (r*int(c.Cols) + col) * stride
				tile.Samples[idx] = h.Encoding.Sample(payload[off : off+stride])
			}
		}
	}

	return tile, nil
}

func setCoords(tile *Tile, h *SDATHeader) {
	if h.HasCoords() {
		tile.HasCoords = true
		tile.SectorX = h.SectorX
		tile.SectorY = h.SectorY
	}
}
