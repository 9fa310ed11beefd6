package matrix

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
	"github.com/KevoDB/blockmatrix/pkg/cache"
	"github.com/KevoDB/blockmatrix/pkg/common/log"
	"github.com/KevoDB/blockmatrix/pkg/config"
	"github.com/KevoDB/blockmatrix/pkg/source"
	"github.com/KevoDB/blockmatrix/pkg/stats"
	"github.com/KevoDB/blockmatrix/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Store is a read-only view of a block matrix file that loads blocks on
// demand. It is safe for concurrent use.
//
// Lookups that hit the cache take no store lock. A miss takes the lock
// stripe of its block, checks the cache again and only then reads the
// block, so concurrent misses on one block cause a single read. Blocks that
// fail to load are not cached and are retried on the next access.
type Store struct {
	header *blockfile.Header
	geom   blockfile.Geometry
	opener source.Opener
	loader *loader
	cache  cache.Cache[blockfile.Coord, *Block]
	locks  *stripedLock

	maxViewCells int

	logger  log.Logger
	tel     telemetry.Telemetry
	metrics StoreMetrics
	stats   stats.Collector

	closed atomic.Bool
}

// Open reads the header of the configured matrix file and prepares the
// store. Header errors are returned as is; no block is read.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	snap := cfg.Snapshot()

	options := storeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if options.logger == nil {
		options.logger = log.GetDefaultLogger().WithField("component", "matrix")
	}
	if options.telemetry == nil {
		options.telemetry = telemetry.NewNoop()
	}
	if options.collector == nil {
		options.collector = stats.NewAtomicCollector()
	}

	kind, err := source.ParseKind(snap.Source)
	if err != nil {
		return nil, err
	}
	opener := options.opener
	if opener == nil {
		opener, err = source.New(snap.Location, kind, source.Options{HTTPTimeout: cfg.HTTPTimeoutDuration()})
		if err != nil {
			return nil, err
		}
	}

	ctx, span := options.telemetry.StartSpan(ctx, "blockmatrix.store.open",
		attribute.String(telemetry.AttrSource, string(kind)),
	)
	defer span.End()

	var header *blockfile.Header
	size := int64(-1)
	err = source.Guard(ctx, opener, func(src source.Source) error {
		var err error
		header, err = blockfile.ReadHeader(source.StreamFrom(src, 0), blockfile.ReadOptions{VerifyMagic: snap.VerifyMagic})
		if n, ok := source.Size(src); ok {
			size = n
		}
		return err
	})
	if err != nil {
		span.SetAttributes(attribute.String(telemetry.AttrStatus, telemetry.StatusError))
		return nil, fmt.Errorf("failed to read header of %s: %w", opener.Location(), err)
	}

	blocks := options.cache
	if blocks == nil {
		policy, err := cache.ParsePolicy(snap.EvictionPolicy)
		if err != nil {
			return nil, err
		}
		blocks, err = cache.New[blockfile.Coord, *Block](policy, snap.CacheCapacity)
		if err != nil {
			return nil, err
		}
	}

	geom := header.Geometry()
	s := &Store{
		header:       header,
		geom:         geom,
		opener:       opener,
		loader:       newLoader(opener, geom),
		cache:        blocks,
		locks:        newStripedLock(snap.LockStripes),
		maxViewCells: snap.MaxViewCells,
		logger:       options.logger,
		tel:          options.telemetry,
		metrics:      NewStoreMetrics(options.telemetry, string(kind), snap.EvictionPolicy),
		stats:        options.collector,
	}

	s.logger.WithFields(map[string]interface{}{
		"location":   opener.Location(),
		"dim":        geom.Dim,
		"block_size": geom.BlockSize,
		"blocks":     geom.BlocksPerAxis() * geom.BlocksPerAxis(),
		"cache":      blocks.Cap(),
	}).Info("Opened matrix %s %s:%s", header.Genome, header.Chr1, header.Chr2)

	// Blocks past the end of the file will read as NaN
	if end := geom.DataOffset + geom.PayloadSize(); size >= 0 && end > size {
		s.logger.Warn("Matrix %s is %d bytes, header declares %d", opener.Location(), size, end)
	}

	return s, nil
}

// Lookup returns the value at (row, col). A block that cannot be loaded
// yields NaN together with a *LoadError.
func (s *Store) Lookup(row, col int) (float32, error) {
	return s.LookupContext(context.Background(), row, col)
}

// LookupContext is Lookup with a context for the block read
func (s *Store) LookupContext(ctx context.Context, row, col int) (float32, error) {
	if !s.geom.Contains(row, col) {
		return nan(), fmt.Errorf("%w: (%d, %d) outside %dx%d matrix", ErrOutOfRange, row, col, s.geom.Dim, s.geom.Dim)
	}
	if s.closed.Load() {
		return nan(), ErrClosed
	}

	s.stats.TrackOperation(stats.OpLookup)

	c, lr, lc := s.geom.Locate(row, col)
	b, err := s.block(ctx, c)
	if err != nil {
		return nan(), err
	}
	return b.At(lr, lc), nil
}

// Entry returns the value at (row, col), or NaN if its block cannot be
// loaded. It panics if (row, col) is outside the matrix.
func (s *Store) Entry(row, col int) float32 {
	v, err := s.Lookup(row, col)
	if errors.Is(err, ErrOutOfRange) {
		panic(err)
	}
	return v
}

// SetEntry does nothing. The store is read-only and never writes to its
// file or cache.
func (s *Store) SetEntry(row, col int, value float32) {
	s.stats.TrackOperation(stats.OpSetEntry)
}

// block returns the cached block at c, loading it if necessary
func (s *Store) block(ctx context.Context, c blockfile.Coord) (*Block, error) {
	if b, ok := s.cache.Get(c); ok {
		s.stats.TrackOperation(stats.OpCacheHit)
		s.metrics.RecordLookup(ctx, true)
		return b, nil
	}

	mu := s.locks.forCoord(c)
	mu.Lock()
	defer mu.Unlock()

	// Another goroutine may have loaded it while we waited
	if b, ok := s.cache.Get(c); ok {
		s.stats.TrackOperation(stats.OpCacheHit)
		s.metrics.RecordLookup(ctx, true)
		return b, nil
	}

	s.stats.TrackOperation(stats.OpCacheMiss)
	s.metrics.RecordLookup(ctx, false)

	start := time.Now()
	b, err := s.loader.load(ctx, c)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.RecordBlockLoad(ctx, c, elapsed, 0, err)
		s.stats.TrackError("block_load")

		fields := map[string]interface{}{
			"block_row": c.Row,
			"block_col": c.Col,
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			fields["offset"] = loadErr.Offset
			fields["length"] = loadErr.Length
		}
		s.logger.WithFields(fields).Error("Failed to load block: %v", err)
		return nil, err
	}

	s.metrics.RecordBlockLoad(ctx, c, elapsed, b.SizeBytes(), nil)
	s.stats.TrackOperationWithLatency(stats.OpBlockLoad, uint64(elapsed.Nanoseconds()))
	s.stats.TrackBytesRead(uint64(b.SizeBytes()))

	// Close purges under every stripe, so a store closed while this load ran
	// must not keep the block
	if !s.closed.Load() {
		s.cache.Put(c, b)
	}
	return b, nil
}

// RowDimension returns the number of rows
func (s *Store) RowDimension() int {
	return int(s.header.Rows)
}

// ColumnDimension returns the number of columns
func (s *Store) ColumnDimension() int {
	return int(s.header.Cols)
}

// LowerValue returns the lower value bound recorded in the header
func (s *Store) LowerValue() float32 {
	return s.header.LowerValue
}

// UpperValue returns the upper value bound recorded in the header
func (s *Store) UpperValue() float32 {
	return s.header.UpperValue
}

// Genome returns the genome identifier recorded in the header
func (s *Store) Genome() string { return s.header.Genome }

// Chr1 returns the row chromosome name
func (s *Store) Chr1() string { return s.header.Chr1 }

// Chr2 returns the column chromosome name
func (s *Store) Chr2() string { return s.header.Chr2 }

// BinSize returns the bin size in base pairs
func (s *Store) BinSize() int { return int(s.header.BinSize) }

// Header returns a copy of the parsed header
func (s *Store) Header() blockfile.Header {
	return *s.header
}

// Geometry returns the block layout of the matrix
func (s *Store) Geometry() blockfile.Geometry {
	return s.geom
}

// Location returns where the matrix file is read from
func (s *Store) Location() string {
	return s.opener.Location()
}

// Stats returns the collector statistics merged with the cache counters
func (s *Store) Stats() map[string]interface{} {
	out := s.stats.GetStats()

	cs := s.cache.Stats()
	out["cache_len"] = cs.Len
	out["cache_cap"] = cs.Cap
	out["cache_inserts"] = cs.Inserts
	out["cache_evictions"] = cs.Evictions

	hits, _ := out[string(stats.OpCacheHit)+"_ops"].(uint64)
	misses, _ := out[string(stats.OpCacheMiss)+"_ops"].(uint64)
	out["cache_hit_rate"] = cache.Stats{Hits: hits, Misses: misses}.HitRate()

	return out
}

// Close drops all cached blocks. Further lookups fail with ErrClosed. Loads
// already in flight finish first and are not cached.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.locks.lockAll()
	s.cache.Purge()
	s.locks.unlockAll()

	if err := s.metrics.Close(); err != nil {
		return fmt.Errorf("failed to close store metrics: %w", err)
	}

	s.logger.Info("Closed matrix %s", s.opener.Location())
	return nil
}

func nan() float32 {
	return float32(math.NaN())
}
