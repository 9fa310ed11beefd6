package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"gonum.org/v1/gonum/mat"

	"github.com/KevoDB/blockmatrix/pkg/common/log"
	"github.com/KevoDB/blockmatrix/pkg/matrix"
	"github.com/KevoDB/blockmatrix/pkg/telemetry"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".info"),
	readline.PcItem(".stats"),
	readline.PcItem(".exit"),
	readline.PcItem("GET"),
	readline.PcItem("VIEW"),
	readline.PcItem("SET"),
)

const helpText = `
Commands:
  .help                   - Show this help message
  .open PATH|URL          - Open a matrix file or URL
  .close                  - Close the current matrix
  .info                   - Show the matrix header and block layout
  .stats                  - Show lookup, cache and load statistics
  .exit                   - Exit the program

  GET row col             - Print the entry at (row, col)
  VIEW row col rows cols  - Print a rows x cols region starting at (row, col)
  SET row col value       - Accepted for compatibility; the matrix is read-only
`

// maxPrintedCells bounds how much of a region VIEW prints
const maxPrintedCells = 400

var errNoMatrix = errors.New("no matrix open")

// session holds the matrix open in the shell
type session struct {
	opts   *options
	logger log.Logger
	tel    telemetry.Telemetry
	store  *matrix.Store
}

func newSession(opts *options, logger log.Logger, tel telemetry.Telemetry) *session {
	return &session{opts: opts, logger: logger, tel: tel}
}

func (s *session) open(ctx context.Context, location string) error {
	store, err := matrix.Open(ctx, s.opts.storeConfig(location),
		matrix.WithLogger(s.logger.WithField("component", "matrix")),
		matrix.WithTelemetry(s.tel),
	)
	if err != nil {
		return err
	}

	s.close()
	s.store = store
	return nil
}

func (s *session) close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("Error closing matrix: %v", err)
	}
	s.store = nil
}

func (s *session) prompt() string {
	if s.store == nil {
		return "hicmat> "
	}
	name := s.store.Location()
	if !isURL(name) {
		name = filepath.Base(name)
	}
	return fmt.Sprintf("hicmat:%s> ", name)
}

// execute runs one shell command. It reports whether the shell should exit.
func (s *session) execute(ctx context.Context, line string, out io.Writer) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToUpper(parts[0])

	if strings.HasPrefix(cmd, ".") {
		switch strings.ToLower(cmd) {
		case ".help":
			fmt.Fprint(out, helpText)
		case ".open":
			if len(parts) != 2 {
				return false, fmt.Errorf("usage: .open PATH|URL")
			}
			if err := s.open(ctx, parts[1]); err != nil {
				return false, err
			}
			fmt.Fprintf(out, "Opened %s\n", parts[1])
		case ".close":
			if s.store == nil {
				return false, errNoMatrix
			}
			location := s.store.Location()
			s.close()
			fmt.Fprintf(out, "Closed %s\n", location)
		case ".info":
			return false, s.info(out)
		case ".stats":
			return false, s.stats(out)
		case ".exit":
			fmt.Fprintln(out, "Goodbye!")
			return true, nil
		default:
			return false, fmt.Errorf("unknown command %s, type .help for help", parts[0])
		}
		return false, nil
	}

	switch cmd {
	case "GET":
		ints, err := parseInts(parts[1:], 2, "GET row col")
		if err != nil {
			return false, err
		}
		if s.store == nil {
			return false, errNoMatrix
		}
		v, err := s.store.LookupContext(ctx, ints[0], ints[1])
		if err != nil {
			var loadErr *matrix.LoadError
			if !errors.As(err, &loadErr) {
				return false, err
			}
			// Unreadable blocks still produce a value
			fmt.Fprintf(out, "%s (block %s unreadable)\n", formatValue(v), loadErr.Coord)
			return false, nil
		}
		fmt.Fprintln(out, formatValue(v))

	case "VIEW":
		ints, err := parseInts(parts[1:], 4, "VIEW row col rows cols")
		if err != nil {
			return false, err
		}
		if s.store == nil {
			return false, errNoMatrix
		}
		region, err := s.store.View(ctx, ints[0], ints[1], ints[2], ints[3])
		if err != nil {
			return false, err
		}
		printRegion(out, region)

	case "SET":
		if len(parts) != 4 {
			return false, fmt.Errorf("usage: SET row col value")
		}
		ints, err := parseInts(parts[1:3], 2, "SET row col value")
		if err != nil {
			return false, err
		}
		value, err := strconv.ParseFloat(parts[3], 32)
		if err != nil {
			return false, fmt.Errorf("invalid value %q", parts[3])
		}
		if s.store == nil {
			return false, errNoMatrix
		}
		s.store.SetEntry(ints[0], ints[1], float32(value))
		fmt.Fprintln(out, "Ignored: the matrix is read-only")

	default:
		return false, fmt.Errorf("unknown command %s, type .help for help", parts[0])
	}

	return false, nil
}

func (s *session) info(out io.Writer) error {
	if s.store == nil {
		return errNoMatrix
	}
	h := s.store.Header()
	g := s.store.Geometry()

	fmt.Fprintf(out, "Location:    %s\n", s.store.Location())
	fmt.Fprintf(out, "Genome:      %s\n", h.Genome)
	fmt.Fprintf(out, "Chromosomes: %s x %s\n", h.Chr1, h.Chr2)
	fmt.Fprintf(out, "Bin size:    %d bp\n", h.BinSize)
	fmt.Fprintf(out, "Dimension:   %d x %d\n", h.Rows, h.Cols)
	fmt.Fprintf(out, "Values:      [%g, %g]\n", h.LowerValue, h.UpperValue)
	fmt.Fprintf(out, "Blocks:      %d x %d of size %d (last %d)\n",
		g.BlocksPerAxis(), g.BlocksPerAxis(), g.BlockSize, g.Extent(g.BlocksPerAxis()-1))
	fmt.Fprintf(out, "Data offset: %d (%d payload bytes)\n", g.DataOffset, g.PayloadSize())
	return nil
}

func (s *session) stats(out io.Writer) error {
	if s.store == nil {
		return errNoMatrix
	}
	stats := s.store.Stats()

	getUint64 := func(key string) uint64 {
		v, _ := stats[key].(uint64)
		return v
	}

	fmt.Fprintln(out, "Operations:")
	fmt.Fprintf(out, "  Lookups: %d\n", getUint64("lookup_ops"))
	fmt.Fprintf(out, "  Views: %d\n", getUint64("view_ops"))
	fmt.Fprintf(out, "  Block loads: %d\n", getUint64("block_load_ops"))
	if ts, ok := stats["last_lookup_time"].(int64); ok && ts > 0 {
		fmt.Fprintf(out, "  Last lookup: %s\n", time.Unix(0, ts).Format(time.RFC3339))
	}

	fmt.Fprintln(out, "\nCache:")
	fmt.Fprintf(out, "  Resident: %v / %v blocks\n", stats["cache_len"], stats["cache_cap"])
	fmt.Fprintf(out, "  Hits: %d, Misses: %d (%.1f%%)\n",
		getUint64("cache_hit_ops"), getUint64("cache_miss_ops"), 100*asFloat(stats["cache_hit_rate"]))
	fmt.Fprintf(out, "  Evictions: %v\n", stats["cache_evictions"])

	fmt.Fprintln(out, "\nStorage:")
	fmt.Fprintf(out, "  Bytes read: %d\n", getUint64("total_bytes_read"))
	if latency, ok := stats["block_load_latency"].(map[string]interface{}); ok {
		if avgNs, ok := latency["avg_ns"].(uint64); ok {
			fmt.Fprintf(out, "  Load avg: %.3f ms\n", float64(avgNs)/1e6)
		}
	}

	if errs, ok := stats["errors"].(map[string]uint64); ok && len(errs) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %d\n", k, errs[k])
		}
	}
	return nil
}

// runInteractive starts the interactive shell
func runInteractive(ctx context.Context, sess *session, stdout, stderr io.Writer) error {
	fmt.Fprintln(stdout, "hicmat - enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".hicmat_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sess.prompt(),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
		Stdout:          stdout,
		Stderr:          stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		rl.SetPrompt(sess.prompt())

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if readErr == io.EOF {
				fmt.Fprintln(stdout, "Goodbye!")
				return nil
			}
			fmt.Fprintf(stderr, "Error reading input: %s\n", readErr)
			continue
		}

		exit, err := sess.execute(ctx, line, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		if exit || ctx.Err() != nil {
			return nil
		}
	}
}

func parseInts(args []string, n int, usage string) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q (usage: %s)", a, usage)
		}
		out[i] = v
	}
	return out, nil
}

func formatValue(v float32) string {
	if math.IsNaN(float64(v)) {
		return "NaN"
	}
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func printRegion(out io.Writer, r *matrix.Region) {
	rows, cols := r.Rows, r.Cols
	truncated := rows*cols > maxPrintedCells
	if truncated {
		side := int(math.Sqrt(maxPrintedCells))
		rows, cols = min(rows, side), min(cols, side)
	}

	for i := 0; i < rows; i++ {
		cells := make([]string, cols)
		for j := 0; j < cols; j++ {
			cells[j] = formatValue(r.At(i, j))
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}

	if truncated {
		fmt.Fprintf(out, "... showing %dx%d of %dx%d\n", rows, cols, r.Rows, r.Cols)
	}
	if r.Missing > 0 {
		fmt.Fprintf(out, "%d cells missing from %d unreadable blocks\n", r.Missing, len(r.Failed))
		return
	}
	fmt.Fprintf(out, "Sum: %.6g\n", mat.Sum(r.Dense()))
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
