package matrix

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
	"github.com/KevoDB/blockmatrix/pkg/stats"
	"github.com/KevoDB/blockmatrix/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Region is a dense row-major copy of a rectangle of the matrix
type Region struct {
	Row  int
	Col  int
	Rows int
	Cols int
	Data []float32

	// Missing counts cells that belong to blocks that failed to load. Those
	// cells are NaN.
	Missing int
	// Failed lists the blocks that failed to load
	Failed []blockfile.Coord
}

// At returns the element at region-local (i, j)
func (r *Region) At(i, j int) float32 {
	return r.Data[i*r.Cols+j]
}

// View copies the rows x cols rectangle whose top-left corner is (row, col).
// Each overlapping block is fetched once. Blocks that fail to load leave NaN
// in their cells and are reported in the region rather than as an error.
func (s *Store) View(ctx context.Context, row, col, rows, cols int) (*Region, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidRegion, rows, cols)
	}
	if !s.geom.Contains(row, col) || !s.geom.Contains(row+rows-1, col+cols-1) {
		return nil, fmt.Errorf("%w: region (%d, %d) %dx%d outside %dx%d matrix",
			ErrOutOfRange, row, col, rows, cols, s.geom.Dim, s.geom.Dim)
	}
	if cells := int64(rows) * int64(cols); cells > int64(s.maxViewCells) {
		return nil, fmt.Errorf("%w: %d cells, limit %d", ErrRegionTooLarge, cells, s.maxViewCells)
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, span := s.tel.StartSpan(ctx, "blockmatrix.store.view",
		attribute.Int("region.rows", rows),
		attribute.Int("region.cols", cols),
	)
	defer span.End()

	start := time.Now()
	region := &Region{
		Row:  row,
		Col:  col,
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}

	first, _, _ := s.geom.Locate(row, col)
	last, _, _ := s.geom.Locate(row+rows-1, col+cols-1)
	bs := s.geom.BlockSize

	for br := first.Row; br <= last.Row; br++ {
		// Rows of this block row that fall inside the region
		r0 := max(row, br*bs)
		r1 := min(row+rows, br*bs+s.geom.Extent(br))

		for bc := first.Col; bc <= last.Col; bc++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			c0 := max(col, bc*bs)
			c1 := min(col+cols, bc*bs+s.geom.Extent(bc))
			coord := blockfile.Coord{Row: br, Col: bc}

			b, err := s.block(ctx, coord)
			if err != nil {
				region.Failed = append(region.Failed, coord)
				region.Missing += (r1 - r0) * (c1 - c0)
			}

			for i := r0; i < r1; i++ {
				dst := region.Data[(i-row)*cols:]
				for j := c0; j < c1; j++ {
					if b == nil {
						dst[j-col] = float32(math.NaN())
					} else {
						dst[j-col] = b.At(i-br*bs, j-bc*bs)
					}
				}
			}
		}
	}

	elapsed := time.Since(start)
	s.stats.TrackOperationWithLatency(stats.OpView, uint64(elapsed.Nanoseconds()))
	s.metrics.RecordView(ctx, rows*cols, region.Missing, elapsed)
	if region.Missing > 0 {
		span.SetAttributes(attribute.Int("region.missing", region.Missing))
		span.SetAttributes(attribute.String(telemetry.AttrStatus, telemetry.StatusError))
	}

	return region, nil
}
