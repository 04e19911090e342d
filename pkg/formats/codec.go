package formats

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies how a chunk payload is stored.
type Codec uint8

// Chunk codecs (SDAT 1.1+).
const (
	CodecRaw  Codec = 0
	CodecZlib Codec = 1
	CodecZstd Codec = 2
)

// ErrUnknownCodec is returned for chunks with an unsupported codec byte.
var ErrUnknownCodec = errors.New("unknown chunk codec")

// maxChunkPayload bounds decompressed chunk sizes: 4096x4096 records of 4 bytes.
const maxChunkPayload = MaxSectorDimension * MaxSectorDimension * 4

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(maxChunkPayload),
	)
})

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecRaw:
		return "raw"
	case CodecZlib:
		return "zlib"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// inflate returns at least want bytes of the decoded payload, or a truncation error.
// Decoded bytes beyond want are dropped. Output grows with the decoded data, not with want.
func (c Codec) inflate(payload []byte, want int) ([]byte, error) {
	if want > maxChunkPayload {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrChunkTooLarge, want, maxChunkPayload)
	}

	switch c {
	case CodecRaw:
		if len(payload) < want {
			return nil, fmt.Errorf("%w: chunk payload has %d bytes, need %d", ErrTruncatedSDATData, len(payload), want)
		}
		return payload[:want], nil

	case CodecZlib:
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib header: %v", ErrTruncatedSDATData, err)
		}
		defer r.Close()

		out, err := io.ReadAll(io.LimitReader(r, int64(want)))
		if err != nil {
			return nil, fmt.Errorf("%w: inflating zlib chunk: %v", ErrTruncatedSDATData, err)
		}
		if len(out) < want {
			return nil, fmt.Errorf("%w: zlib chunk has %d bytes, need %d", ErrTruncatedSDATData, len(out), want)
		}
		return out, nil

	case CodecZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: inflating zstd chunk: %v", ErrTruncatedSDATData, err)
		}
		if len(out) < want {
			return nil, fmt.Errorf("%w: zstd chunk has %d bytes, need %d", ErrTruncatedSDATData, len(out), want)
		}
		return out[:want], nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(c))
	}
}
