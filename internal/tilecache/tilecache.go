// Package tilecache persists decoded sector tiles between runs.
//
// Tiles are stored in BadgerDB, zstd-compressed, under a key derived from the sector file's
// path, size, modification time and the decoder revision. Editing a file or upgrading the
// decoder therefore misses the cache instead of serving stale samples.
package tilecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/internal/logger"
	"github.com/Faultbox/sdat-terrain/internal/terrain"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("tile cache is closed")

// Cache is a persistent decoded-tile store. It is safe for concurrent use.
type Cache struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.RWMutex
	closed bool

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens (or creates) a cache in dir.
func Open(dir string) (*Cache, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory returns a cache that lives for the process only.
func OpenInMemory() (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Cache, error) {
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening tile cache: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Cache{db: db, enc: enc, dec: dec}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}

// Key returns the cache key of an entry.
func Key(e *catalog.Entry) []byte {
	return fmt.Appendf(nil, "tile:r%d:%s:%d:%d:%s",
		formats.Revision, e.Format, e.Size, e.ModTime.UnixNano(), e.Path)
}

// Get returns the cached tile for e. ok is false on a miss.
func (c *Cache) Get(e *catalog.Entry) (tile *formats.Tile, ok bool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrClosed
	}

	var packed []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(e))
		if err != nil {
			return err
		}
		packed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading tile cache: %w", err)
	}

	raw, err := c.dec.DecodeAll(packed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompressing cached tile: %w", err)
	}
	tile, err = unmarshalTile(raw)
	if err != nil {
		return nil, false, err
	}
	c.hits.Add(1)
	return tile, true, nil
}

// Put stores tile under e's key.
func (c *Cache) Put(e *catalog.Entry, tile *formats.Tile) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}

	packed := c.enc.EncodeAll(marshalTile(tile), nil)
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(Key(e), packed)
	})
	if err != nil {
		return fmt.Errorf("writing tile cache: %w", err)
	}
	return nil
}

// Stats returns the hit and miss counts since Open.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Source serves tiles from the cache and falls back to Next on a miss.
type Source struct {
	Cache *Cache
	Next  terrain.TileSource
}

// Load implements terrain.TileSource. Decode failures are never cached.
func (s Source) Load(ctx context.Context, e *catalog.Entry) (*formats.Tile, error) {
	tile, ok, err := s.Cache.Get(e)
	if err != nil {
		logger.Warn("tile cache read failed", zap.String("path", e.Path), zap.Error(err))
	}
	if ok {
		return tile, nil
	}

	tile, err = s.Next.Load(ctx, e)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Put(e, tile); err != nil {
		logger.Warn("tile cache write failed", zap.String("path", e.Path), zap.Error(err))
	}
	return tile, nil
}
