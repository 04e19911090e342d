package terrain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

// DefaultReadTimeout bounds the read of a single sector file.
const DefaultReadTimeout = 10 * time.Second

// readBlock is the read size between deadline checks.
const readBlock = 256 << 10

// TileSource produces the decoded tile of one catalog entry.
type TileSource interface {
	Load(ctx context.Context, e *catalog.Entry) (*formats.Tile, error)
}

// FileSource reads and decodes sector files from disk.
type FileSource struct {
	Timeout time.Duration // Per-file read bound; zero means DefaultReadTimeout
}

// Load implements TileSource.
func (s FileSource) Load(ctx context.Context, e *catalog.Entry) (*formats.Tile, error) {
	data, err := ReadFile(ctx, e.Path, s.Timeout)
	if err != nil {
		return nil, err
	}
	tile, err := formats.Decode(data, e.Format)
	if err != nil {
		return nil, formats.WithPath(err, e.Path)
	}
	return tile, nil
}

// ReadFile reads a whole file, giving up once timeout elapses or ctx is done.
func ReadFile(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sector file: %w", err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	buf := make([]byte, 0, size)
	block := make([]byte, readBlock)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		n, err := f.Read(block)
		buf = append(buf, block[:n]...)
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
}
