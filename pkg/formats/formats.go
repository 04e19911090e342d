// Package formats provides decoders for terrain sector files.
//
// Two on-disk layouts are understood:
//
//   - SDAT containers, identified by the "SDAT" magic and a version pair. They carry an explicit
//     chunk table whose entries declare where each block of samples lands in the tile.
//   - Legacy .csdat sectors as dumped by the game. They have no magic, so they are only decoded
//     when the caller selects FormatCSDAT (the dataset naming convention does this).
//
// Tile rows run south to north: row 0 is the southern edge of the sector.
package formats

import (
	"fmt"
	"os"
	"strings"
)

// Revision identifies the decoder behaviour. Bump it whenever decoded output for the same bytes
// changes so persisted tile caches are invalidated.
const Revision = 1

// Format selects the layout used to decode a sector file.
type Format uint8

// Supported formats.
const (
	FormatAuto  Format = iota // Detect by magic; only SDAT can be detected
	FormatSDAT                // Versioned chunked container
	FormatCSDAT               // Legacy fixed-offset game dump
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatSDAT:
		return "sdat"
	case FormatCSDAT:
		return "csdat"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// ParseFormat converts a format name into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "sdat":
		return FormatSDAT, nil
	case "csdat":
		return FormatCSDAT, nil
	default:
		return FormatAuto, fmt.Errorf("unknown sector format %q", s)
	}
}

// Decode parses one sector file. The magic always wins: bytes starting with "SDAT" are decoded
// as a container whatever format was requested. Otherwise the legacy layout is used only when
// format is FormatCSDAT.
//
// Returned errors are *DecodeError values classified by Kind.
func Decode(data []byte, format Format) (*Tile, error) {
	if HasSDATMagic(data) {
		tile, err := DecodeSDAT(data)
		if err != nil {
			return nil, classify(err)
		}
		return tile, nil
	}

	switch format {
	case FormatCSDAT:
		tile, err := DecodeCSDAT(data)
		if err != nil {
			return nil, classify(err)
		}
		return tile, nil
	case FormatSDAT:
		return nil, classify(ErrInvalidSDATMagic)
	default:
		return nil, classify(ErrUnknownFormat)
	}
}

// DecodeFile reads and decodes a sector file from disk.
func DecodeFile(path string, format Format) (*Tile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sector file: %w", err)
	}
	tile, err := Decode(data, format)
	if err != nil {
		return nil, WithPath(err, path)
	}
	return tile, nil
}
