package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/KevoDB/blockmatrix/pkg/common/log"
	"github.com/KevoDB/blockmatrix/pkg/config"
	"github.com/KevoDB/blockmatrix/pkg/telemetry"
)

const usageText = `hicmat - inspect block matrix files

Usage:
  hicmat [options] [matrix_path_or_url]

By default hicmat opens the matrix (if given) and starts an interactive shell.
With --command, each command is run in order and hicmat exits.
With --generate, a synthetic matrix is written first and then opened.

Options:
`

// options holds the parsed command line
type options struct {
	Location    string
	ConfigPath  string
	Source      string
	Capacity    int
	Policy      string
	Stripes     int
	NoMagic     bool
	LogLevel    string
	MetricsAddr string
	Commands    []string

	// store is the layered store configuration
	store *config.Config

	Generate  string
	Dim       int
	BlockSize int
	Genome    string
	Chrom     string
	BinSize   int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger := log.NewStandardLogger(log.WithOutput(stderr), log.WithLevel(level))
	log.SetDefaultLogger(logger)

	if opts.Generate != "" {
		if err := generateMatrix(opts.Generate, opts.Dim, opts.BlockSize, opts.Genome, opts.Chrom, opts.BinSize); err != nil {
			fmt.Fprintf(stderr, "Error generating matrix: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %dx%d matrix (block size %d) to %s\n", opts.Dim, opts.Dim, opts.BlockSize, opts.Generate)
		if opts.Location == "" {
			opts.Location = opts.Generate
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, shutdownMetrics, err := startTelemetry(opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error starting telemetry: %v\n", err)
		return 1
	}
	defer shutdownMetrics()

	sess := newSession(opts, logger, tel)
	defer sess.close()

	if opts.Location != "" {
		if err := sess.open(ctx, opts.Location); err != nil {
			fmt.Fprintf(stderr, "Error opening matrix: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Opened %s\n", opts.Location)
	}

	if len(opts.Commands) > 0 {
		for _, line := range opts.Commands {
			if _, err := sess.execute(ctx, line, stdout); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
		}
		return 0
	}

	if err := runInteractive(ctx, sess, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// parseOptions parses args. The store configuration is layered: defaults,
// then the --config file, then BLOCKMATRIX_* variables, then the flags given
// explicitly on the command line.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	defaults := config.NewDefaultConfig("")
	opts := &options{}

	fs := flag.NewFlagSet("hicmat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nType .help in the shell for the list of commands.\n")
	}

	var httpTimeout time.Duration
	var maxViewCells int

	fs.StringVar(&opts.ConfigPath, "config", "", "JSON or JSONC configuration file")
	fs.StringVar(&opts.Source, "source", defaults.Source, "Byte source: auto, file, mmap or http")
	fs.IntVar(&opts.Capacity, "cache", defaults.CacheCapacity, "Maximum number of cached blocks")
	fs.StringVar(&opts.Policy, "eviction", defaults.EvictionPolicy, "Cache eviction policy: clock, lru or fifo")
	fs.IntVar(&opts.Stripes, "lock-stripes", defaults.LockStripes, "Number of block load lock stripes")
	fs.BoolVar(&opts.NoMagic, "no-magic", false, "Accept files with an unexpected magic number")
	fs.DurationVar(&httpTimeout, "http-timeout", defaults.HTTPTimeoutDuration(), "Timeout of one HTTP range request")
	fs.IntVar(&maxViewCells, "max-view-cells", defaults.MaxViewCells, "Largest region VIEW may copy")
	fs.StringVar(&opts.LogLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	fs.StringArrayVarP(&opts.Commands, "command", "c", nil, "Run a shell command and exit (repeatable)")

	fs.StringVar(&opts.Generate, "generate", "", "Write a synthetic matrix to this path before opening it")
	fs.IntVar(&opts.Dim, "dim", 1000, "Dimension of the generated matrix")
	fs.IntVar(&opts.BlockSize, "block-size", 100, "Block size of the generated matrix")
	fs.StringVar(&opts.Genome, "genome", "hg19", "Genome of the generated matrix")
	fs.StringVar(&opts.Chrom, "chr", "chr1", "Chromosome of the generated matrix")
	fs.IntVar(&opts.BinSize, "bin-size", 10000, "Bin size in base pairs of the generated matrix")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one matrix location, got %d", fs.NArg())
	}

	cfg := defaults
	if opts.ConfigPath != "" {
		loaded, err := config.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.LoadFromEnv()

	cfg.Update(func(c *config.Config) {
		if fs.NArg() == 1 {
			c.Location = fs.Arg(0)
		}
		if fs.Changed("source") {
			c.Source = opts.Source
		}
		if fs.Changed("cache") {
			c.CacheCapacity = opts.Capacity
		}
		if fs.Changed("eviction") {
			c.EvictionPolicy = opts.Policy
		}
		if fs.Changed("lock-stripes") {
			c.LockStripes = opts.Stripes
		}
		if fs.Changed("no-magic") {
			c.VerifyMagic = !opts.NoMagic
		}
		if fs.Changed("http-timeout") {
			c.HTTPTimeout = httpTimeout.Milliseconds()
		}
		if fs.Changed("max-view-cells") {
			c.MaxViewCells = maxViewCells
		}
		if fs.Changed("log-level") {
			c.LogLevel = opts.LogLevel
		}
	})

	// Reflect the effective settings
	snap := cfg.Snapshot()
	opts.Location = snap.Location
	opts.Source = snap.Source
	opts.Capacity = snap.CacheCapacity
	opts.Policy = snap.EvictionPolicy
	opts.Stripes = snap.LockStripes
	opts.NoMagic = !snap.VerifyMagic
	opts.LogLevel = snap.LogLevel
	opts.store = cfg

	return opts, nil
}

// storeConfig returns a copy of the layered store configuration pointed at
// location
func (o *options) storeConfig(location string) *config.Config {
	cfg := config.NewDefaultConfig(location)
	if o.store == nil {
		return cfg
	}
	snap := o.store.Snapshot()
	cfg.Update(func(c *config.Config) {
		c.Version = snap.Version
		c.Location = location
		c.Source = snap.Source
		c.VerifyMagic = snap.VerifyMagic
		c.HTTPTimeout = snap.HTTPTimeout
		c.CacheCapacity = snap.CacheCapacity
		c.EvictionPolicy = snap.EvictionPolicy
		c.LockStripes = snap.LockStripes
		c.MaxViewCells = snap.MaxViewCells
		c.LogLevel = snap.LogLevel
	})
	return cfg
}

// startTelemetry enables the Prometheus exporter when a metrics address is
// set, and serves it until the returned function is called
func startTelemetry(opts *options, logger log.Logger) (telemetry.Telemetry, func(), error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = "hicmat"
	tcfg.LoadFromEnv()
	if opts.MetricsAddr != "" {
		tcfg.Enabled = true
		if !tcfg.HasExporter(telemetry.ExporterPrometheus) {
			tcfg.Exporters = append(tcfg.Exporters, telemetry.ExporterPrometheus)
		}
	}

	tel, err := telemetry.New(tcfg)
	if err != nil {
		return nil, nil, err
	}

	var server *http.Server
	if handler := telemetry.MetricsHandler(tel); handler != nil && opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		server = &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
		logger.Info("Serving metrics on %s/metrics", opts.MetricsAddr)
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down metrics server: %v", err)
			}
		}
		if err := tel.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down telemetry: %v", err)
		}
	}

	return tel, shutdown, nil
}

func isURL(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
