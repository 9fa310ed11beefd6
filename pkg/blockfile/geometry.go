package blockfile

import "fmt"

// FloatSize is the on-disk size of one matrix element
const FloatSize = 4

// Coord identifies a block by its block-row and block-column index
type Coord struct {
	Row int
	Col int
}

func (c Coord) String() string {
	return fmt.Sprintf("row%d_col%d", c.Row, c.Col)
}

// BlockRange locates one block's payload within the file
type BlockRange struct {
	// Offset is the absolute byte offset of the block's first element
	Offset int64
	// Rows and Cols are the block's own extent
	Rows int
	Cols int
}

// Length returns the number of payload bytes of the block
func (r BlockRange) Length() int64 {
	return FloatSize * int64(r.Rows) * int64(r.Cols)
}

// Geometry maps matrix coordinates onto the block grid. Every block row and
// column is BlockSize wide except the last one when Dim is not a multiple of
// BlockSize; that trailing block is RemainderSize wide.
type Geometry struct {
	Dim           int
	BlockSize     int
	NFullBlocks   int
	RemainderSize int
	DataOffset    int64
}

// NewGeometry derives the block geometry. blockSize must be positive.
func NewGeometry(dim, blockSize int, dataOffset int64) Geometry {
	n := dim / blockSize
	return Geometry{
		Dim:           dim,
		BlockSize:     blockSize,
		NFullBlocks:   n,
		RemainderSize: dim - n*blockSize,
		DataOffset:    dataOffset,
	}
}

// BlocksPerAxis returns the number of block rows (equal to block columns)
func (g Geometry) BlocksPerAxis() int {
	if g.RemainderSize > 0 {
		return g.NFullBlocks + 1
	}
	return g.NFullBlocks
}

// Extent returns the edge length of block row or column k
func (g Geometry) Extent(k int) int {
	if k < g.NFullBlocks {
		return g.BlockSize
	}
	return g.RemainderSize
}

// Contains reports whether (row, col) lies inside the matrix
func (g Geometry) Contains(row, col int) bool {
	return row >= 0 && row < g.Dim && col >= 0 && col < g.Dim
}

// Locate returns the block owning (row, col) and the element's position
// inside that block. Addressing always divides by the nominal BlockSize.
func (g Geometry) Locate(row, col int) (Coord, int, int) {
	c := Coord{Row: row / g.BlockSize, Col: col / g.BlockSize}
	return c, row - c.Row*g.BlockSize, col - c.Col*g.BlockSize
}

// Range computes where block c lives on disk.
//
// The payload is block-row-major: block row r starts r*BlockSize*Dim floats
// in, since every earlier block row is full height and spans the whole width.
// Within a block row of height rowDim the blocks follow left to right, and
// each one before the last is BlockSize wide, so block column c starts
// c*BlockSize*rowDim floats into its block row.
func (g Geometry) Range(c Coord) BlockRange {
	rowDim := g.Extent(c.Row)
	colDim := g.Extent(c.Col)

	rowStart := int64(c.Row) * int64(g.BlockSize) * int64(g.Dim)
	colStart := int64(c.Col) * int64(g.BlockSize) * int64(rowDim)

	return BlockRange{
		Offset: g.DataOffset + FloatSize*(rowStart+colStart),
		Rows:   rowDim,
		Cols:   colDim,
	}
}

// PayloadSize returns the total number of payload bytes
func (g Geometry) PayloadSize() int64 {
	return FloatSize * int64(g.Dim) * int64(g.Dim)
}
