// Package matrix serves individual entries of a square, block-partitioned
// float32 matrix without reading the whole file. Blocks are loaded on first
// access from a byte source and kept in a bounded cache.
package matrix

// BasicMatrix is the read surface shared with in-memory matrices
type BasicMatrix interface {
	// Entry returns the value at (row, col). Unreadable entries are NaN.
	Entry(row, col int) float32
	// SetEntry updates the value at (row, col). Stores may ignore it.
	SetEntry(row, col int, value float32)
	RowDimension() int
	ColumnDimension() int
	LowerValue() float32
	UpperValue() float32
}

var _ BasicMatrix = (*Store)(nil)
