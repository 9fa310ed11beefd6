package matrix

import (
	"gonum.org/v1/gonum/mat"
)

// storeMatrix exposes a Store as a read-only mat.Matrix
type storeMatrix struct {
	s *Store
}

var _ mat.Matrix = storeMatrix{}

// Matrix returns the whole store as a mat.Matrix. Elements are loaded on
// demand through the block cache, so gonum routines that walk the matrix
// read it block by block. At panics outside the matrix, like gonum's own
// types, and returns NaN for unreadable blocks.
func (s *Store) Matrix() mat.Matrix {
	return storeMatrix{s: s}
}

func (m storeMatrix) Dims() (int, int) {
	return m.s.RowDimension(), m.s.ColumnDimension()
}

func (m storeMatrix) At(i, j int) float64 {
	return float64(m.s.Entry(i, j))
}

func (m storeMatrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// Dense returns the region as a *mat.Dense. Missing cells stay NaN.
func (r *Region) Dense() *mat.Dense {
	data := make([]float64, len(r.Data))
	for i, v := range r.Data {
		data[i] = float64(v)
	}
	return mat.NewDense(r.Rows, r.Cols, data)
}
