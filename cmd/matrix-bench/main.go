package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
	"github.com/KevoDB/blockmatrix/pkg/cache"
	"github.com/KevoDB/blockmatrix/pkg/common/log"
)

// benchOptions holds the parsed command line
type benchOptions struct {
	Dim         int
	BlockSize   int
	Duration    time.Duration
	Readers     int
	Capacity    int
	Policies    string
	Stripes     int
	Source      string
	Access      string
	Window      int
	DataDir     string
	ResultsFile string
	CPUProfile  string
	MemProfile  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseBenchOptions(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	log.SetDefaultLogger(log.NewStandardLogger(log.WithOutput(stderr), log.WithLevel(log.LevelWarn)))

	if opts.CPUProfile != "" {
		f, err := os.Create(opts.CPUProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir, err = os.MkdirTemp("", "matrix-bench-*")
		if err != nil {
			fmt.Fprintf(stderr, "Failed to create data directory: %v\n", err)
			return 1
		}
		defer os.RemoveAll(dataDir)
	} else if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(stderr, "Failed to create data directory: %v\n", err)
		return 1
	}

	path := filepath.Join(dataDir, fmt.Sprintf("bench_%d_%d.hicm", opts.Dim, opts.BlockSize))
	fmt.Fprintf(stdout, "Generating %dx%d matrix with block size %d...\n", opts.Dim, opts.Dim, opts.BlockSize)
	if err := writeBenchMatrix(path, opts.Dim, opts.BlockSize); err != nil {
		fmt.Fprintf(stderr, "Failed to generate matrix: %v\n", err)
		return 1
	}

	var results []BenchmarkResult
	for _, policy := range strings.Split(opts.Policies, ",") {
		policy = strings.TrimSpace(policy)
		if policy == "" {
			continue
		}
		fmt.Fprintf(stdout, "Running %s access with %s eviction (%d readers, %s)...\n",
			opts.Access, policy, opts.Readers, opts.Duration)

		result, err := runBenchmark(ctx, path, policy, opts)
		if err != nil {
			fmt.Fprintf(stderr, "Benchmark %s failed: %v\n", policy, err)
			return 1
		}
		results = append(results, result)
		if ctx.Err() != nil {
			break
		}
	}

	fmt.Fprintln(stdout)
	PrintResultTable(stdout, results)

	if opts.ResultsFile != "" {
		if err := SaveResultCSV(results, opts.ResultsFile); err != nil {
			fmt.Fprintf(stderr, "Failed to save results: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Results saved to %s\n", opts.ResultsFile)
	}

	if opts.MemProfile != "" {
		f, err := os.Create(opts.MemProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create memory profile: %v\n", err)
			return 1
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not write memory profile: %v\n", err)
			return 1
		}
	}

	return 0
}

func parseBenchOptions(args []string, stderr io.Writer) (*benchOptions, error) {
	opts := &benchOptions{}

	fs := flag.NewFlagSet("matrix-bench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.IntVar(&opts.Dim, "dim", 5000, "Dimension of the generated matrix")
	fs.IntVar(&opts.BlockSize, "block-size", 100, "Block size of the generated matrix")
	fs.DurationVar(&opts.Duration, "duration", 10*time.Second, "Duration of each benchmark run")
	fs.IntVar(&opts.Readers, "readers", runtime.NumCPU(), "Number of concurrent readers")
	fs.IntVar(&opts.Capacity, "cache", cache.DefaultCapacity, "Maximum number of cached blocks")
	fs.StringVar(&opts.Policies, "eviction", "clock,lru,fifo", "Comma-separated eviction policies to compare")
	fs.IntVar(&opts.Stripes, "lock-stripes", 64, "Number of block load lock stripes")
	fs.StringVar(&opts.Source, "source", "file", "Byte source: file or mmap")
	fs.StringVar(&opts.Access, "access", accessLocal, "Access pattern: random or local")
	fs.IntVar(&opts.Window, "window", 500, "Distance from the diagonal covered by local access")
	fs.StringVar(&opts.DataDir, "data-dir", "", "Directory for the generated matrix (default: a temp dir)")
	fs.StringVar(&opts.ResultsFile, "results", "", "File to write results to in CSV format")
	fs.StringVar(&opts.CPUProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.StringVar(&opts.MemProfile, "mem-profile", "", "Write memory profile to file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.Dim <= 0 || opts.BlockSize <= 0 {
		return nil, fmt.Errorf("dimension and block size must be positive")
	}
	if opts.Readers < 1 {
		return nil, fmt.Errorf("at least one reader is required")
	}
	if opts.Access != accessRandom && opts.Access != accessLocal {
		return nil, fmt.Errorf("unknown access pattern %q", opts.Access)
	}
	return opts, nil
}

// writeBenchMatrix writes a contact-like matrix whose values decay away
// from the diagonal
func writeBenchMatrix(path string, dim, blockSize int) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	value := func(row, col int) float32 {
		d := row - col
		if d < 0 {
			d = -d
		}
		return 1 / float32(1+d)
	}
	h := blockfile.NewHeader("bench", "chrB", "chrB", 1000, int32(dim), int32(blockSize))
	h.LowerValue = value(0, dim-1)
	h.UpperValue = value(0, 0)
	return blockfile.WriteFile(path, h, value)
}
