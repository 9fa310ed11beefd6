package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevoDB/blockmatrix/pkg/config"
	"github.com/KevoDB/blockmatrix/pkg/matrix"
)

const (
	accessRandom = "random"
	accessLocal  = "local"
)

// coordGen produces the cells a reader visits
type coordGen func(r *rand.Rand) (int, int)

// newCoordGen returns uniform cells for random access, and cells near the
// diagonal for local access, which is how contact maps are usually browsed
func newCoordGen(access string, dim, window int) coordGen {
	if access == accessRandom || window <= 0 || window >= dim {
		return func(r *rand.Rand) (int, int) {
			return r.Intn(dim), r.Intn(dim)
		}
	}
	return func(r *rand.Rand) (int, int) {
		row := r.Intn(dim)
		col := row + r.Intn(2*window+1) - window
		if col < 0 {
			col = -col
		}
		if col >= dim {
			col = 2*(dim-1) - col
		}
		return row, col
	}
}

// runBenchmark opens the matrix with the given eviction policy and reads
// entries from opts.Readers goroutines until opts.Duration elapses
func runBenchmark(ctx context.Context, path, policy string, opts *benchOptions) (BenchmarkResult, error) {
	cfg := config.NewDefaultConfig(path)
	cfg.Update(func(c *config.Config) {
		c.Source = opts.Source
		c.CacheCapacity = opts.Capacity
		c.EvictionPolicy = policy
		c.LockStripes = opts.Stripes
	})

	store, err := matrix.Open(ctx, cfg)
	if err != nil {
		return BenchmarkResult{}, err
	}
	defer store.Close()

	dim := store.RowDimension()
	gen := newCoordGen(opts.Access, dim, opts.Window)

	runCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	var (
		ops       atomic.Int64
		latencyNs atomic.Int64
		wg        sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < opts.Readers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			var n, total int64
			for runCtx.Err() == nil {
				// Check the clock in batches so it does not dominate hits
				batchStart := time.Now()
				for j := 0; j < 64; j++ {
					row, col := gen(r)
					store.Entry(row, col)
				}
				total += time.Since(batchStart).Nanoseconds()
				n += 64
			}
			ops.Add(n)
			latencyNs.Add(total)
		}(time.Now().UnixNano() + int64(i))
	}
	wg.Wait()
	elapsed := time.Since(start)

	n := ops.Load()
	if n == 0 {
		return BenchmarkResult{}, fmt.Errorf("no lookups completed")
	}

	stats := store.Stats()
	hitRate, _ := stats["cache_hit_rate"].(float64)
	loads, _ := stats["block_load_ops"].(uint64)

	return BenchmarkResult{
		Policy:     policy,
		Source:     opts.Source,
		Access:     opts.Access,
		Dim:        dim,
		BlockSize:  store.Geometry().BlockSize,
		Capacity:   opts.Capacity,
		Readers:    opts.Readers,
		Operations: int(n),
		Duration:   elapsed.Seconds(),
		Throughput: float64(n) / elapsed.Seconds(),
		Latency:    float64(latencyNs.Load()) / float64(n) / 1000,
		HitRate:    hitRate * 100,
		BlockLoads: loads,
		Timestamp:  time.Now(),
	}, nil
}
