package blockfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGeometryRemainder(t *testing.T) {
	g := NewGeometry(10, 4, 0)

	if g.NFullBlocks != 2 || g.RemainderSize != 2 {
		t.Fatalf("Expected 2 full blocks and remainder 2, got %d and %d", g.NFullBlocks, g.RemainderSize)
	}
	if g.BlocksPerAxis() != 3 {
		t.Errorf("Expected 3 blocks per axis, got %d", g.BlocksPerAxis())
	}

	for k, want := range []int{4, 4, 2} {
		if got := g.Extent(k); got != want {
			t.Errorf("Extent(%d) = %d, want %d", k, got, want)
		}
	}

	coord, lr, lc := g.Locate(9, 9)
	if coord != (Coord{2, 2}) || lr != 1 || lc != 1 {
		t.Errorf("Locate(9, 9) = %v (%d, %d), want row2_col2 (1, 1)", coord, lr, lc)
	}

	r := g.Range(coord)
	if r.Rows != 2 || r.Cols != 2 {
		t.Errorf("Expected a 2x2 trailing block, got %dx%d", r.Rows, r.Cols)
	}
}

func TestGeometryExactMultiple(t *testing.T) {
	g := NewGeometry(8, 4, 0)
	if g.RemainderSize != 0 || g.BlocksPerAxis() != 2 {
		t.Errorf("Expected 2 blocks per axis without remainder, got %d (rem %d)",
			g.BlocksPerAxis(), g.RemainderSize)
	}
}

func TestLocateCoversEveryElement(t *testing.T) {
	for _, tc := range []struct{ dim, blockSize int }{
		{10, 4}, {8, 4}, {1, 1}, {7, 10}, {33, 5},
	} {
		g := NewGeometry(tc.dim, tc.blockSize, 0)
		for row := 0; row < tc.dim; row++ {
			for col := 0; col < tc.dim; col++ {
				c, lr, lc := g.Locate(row, col)
				if c.Row*tc.blockSize+lr != row || c.Col*tc.blockSize+lc != col {
					t.Fatalf("dim=%d bs=%d: Locate(%d, %d) = %v (%d, %d)",
						tc.dim, tc.blockSize, row, col, c, lr, lc)
				}
				if lr >= g.Extent(c.Row) || lc >= g.Extent(c.Col) {
					t.Fatalf("dim=%d bs=%d: local (%d, %d) outside block %v", tc.dim, tc.blockSize, lr, lc, c)
				}
			}
		}
	}
}

func TestRangeOffsets(t *testing.T) {
	const header = 100
	g := NewGeometry(10, 4, header)

	tests := []struct {
		coord Coord
		want  BlockRange
	}{
		{Coord{0, 0}, BlockRange{Offset: header, Rows: 4, Cols: 4}},
		{Coord{0, 1}, BlockRange{Offset: header + 4*16, Rows: 4, Cols: 4}},
		{Coord{0, 2}, BlockRange{Offset: header + 4*32, Rows: 4, Cols: 2}},
		{Coord{1, 0}, BlockRange{Offset: header + 4*40, Rows: 4, Cols: 4}},
		{Coord{2, 0}, BlockRange{Offset: header + 4*80, Rows: 2, Cols: 4}},
		{Coord{2, 1}, BlockRange{Offset: header + 4*88, Rows: 2, Cols: 4}},
		{Coord{2, 2}, BlockRange{Offset: header + 4*96, Rows: 2, Cols: 2}},
	}

	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, g.Range(tc.coord)); diff != "" {
			t.Errorf("Range(%v) mismatch (-want +got):\n%s", tc.coord, diff)
		}
	}

	last := g.Range(Coord{2, 2})
	if last.Offset+int64(last.Length()) != header+g.PayloadSize() {
		t.Errorf("Last block should end at the end of the payload")
	}
}
