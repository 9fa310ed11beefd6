package main

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordGenStaysInBounds(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, access := range []string{accessRandom, accessLocal} {
		gen := newCoordGen(access, 50, 10)
		for i := 0; i < 10000; i++ {
			row, col := gen(r)
			require.True(t, row >= 0 && row < 50 && col >= 0 && col < 50,
				"%s produced (%d, %d)", access, row, col)
			if access == accessLocal {
				d := row - col
				if d < 0 {
					d = -d
				}
				require.LessOrEqual(t, d, 10)
			}
		}
	}
}

func TestRunBenchmark(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.hicm")
	require.NoError(t, writeBenchMatrix(path, 60, 8))

	opts := &benchOptions{
		Duration: 50 * time.Millisecond,
		Readers:  4,
		Capacity: 10,
		Stripes:  8,
		Source:   "file",
		Access:   accessRandom,
	}

	result, err := runBenchmark(context.Background(), path, "lru", opts)
	require.NoError(t, err)

	assert.Equal(t, "lru", result.Policy)
	assert.Equal(t, 60, result.Dim)
	assert.Equal(t, 8, result.BlockSize)
	assert.Greater(t, result.Operations, 0)
	assert.Greater(t, result.Throughput, 0.0)
	assert.Greater(t, result.BlockLoads, uint64(0))
	assert.True(t, result.HitRate >= 0 && result.HitRate <= 100)
}

func TestRunWritesResults(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "out", "results.csv")

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--dim", "40",
		"--block-size", "7",
		"--duration", "20ms",
		"--readers", "2",
		"--eviction", "clock,fifo",
		"--data-dir", dir,
		"--results", results,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	assert.Contains(t, stdout.String(), "| clock  |")
	assert.Contains(t, stdout.String(), "| fifo   |")

	loaded, err := LoadResultCSV(results)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "clock", loaded[0].Policy)
	assert.Equal(t, "fifo", loaded[1].Policy)
	assert.Equal(t, accessLocal, loaded[0].Access)
	assert.Equal(t, 40, loaded[1].Dim)
	assert.Greater(t, loaded[0].Operations, 0)
}

func TestParseBenchOptionsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--dim", "0"},
		{"--readers", "0"},
		{"--access", "zigzag"},
		{"extra"},
	} {
		_, err := parseBenchOptions(args, &bytes.Buffer{})
		assert.Error(t, err, strings.Join(args, " "))
	}
}

func TestPrintResultTableEmpty(t *testing.T) {
	var out bytes.Buffer
	PrintResultTable(&out, nil)
	assert.Equal(t, "No results to display\n", out.String())
}
