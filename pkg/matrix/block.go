package matrix

import (
	"github.com/KevoDB/blockmatrix/pkg/blockfile"
)

// Block is one decoded rectangle of the matrix. It is never modified after
// loading and may be shared between goroutines.
type Block struct {
	Coord blockfile.Coord
	Rows  int
	Cols  int
	data  []float32
}

func newBlock(c blockfile.Coord, rows, cols int, data []float32) *Block {
	return &Block{Coord: c, Rows: rows, Cols: cols, data: data}
}

// At returns the element at block-local (r, c)
func (b *Block) At(r, c int) float32 {
	return b.data[r*b.Cols+c]
}

// Len returns the number of elements in the block
func (b *Block) Len() int {
	return len(b.data)
}

// SizeBytes returns the on-disk payload size of the block
func (b *Block) SizeBytes() int {
	return blockfile.FloatSize * len(b.data)
}
