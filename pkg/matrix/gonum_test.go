package matrix

import (
	"context"
	"math"
	"os"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStoreAsGonumMatrix(t *testing.T) {
	path := writeMatrix(t, 10, 4, valueAt)
	s := openStore(t, path, nil)
	m := s.Matrix()

	if r, c := m.Dims(); r != 10 || c != 10 {
		t.Fatalf("Expected 10x10, got %dx%d", r, c)
	}
	if got := m.At(9, 7); got != float64(valueAt(9, 7)) {
		t.Errorf("At(9, 7) = %v, want %v", got, valueAt(9, 7))
	}
	if got := m.T().At(2, 5); got != float64(valueAt(5, 2)) {
		t.Errorf("T().At(2, 5) = %v, want %v", got, valueAt(5, 2))
	}

	col := mat.Col(nil, 3, m)
	for i, v := range col {
		if v != float64(valueAt(i, 3)) {
			t.Errorf("Col(3)[%d] = %v, want %v", i, v, valueAt(i, 3))
		}
	}

	// Copying the whole store through gonum reads every block once
	dense := mat.DenseCopyOf(m)
	region, err := s.View(context.Background(), 0, 0, 10, 10)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if !mat.Equal(dense, region.Dense()) {
		t.Error("DenseCopyOf and View disagree")
	}
	if loads := s.Stats()["block_load_ops"]; loads != uint64(9) {
		t.Errorf("Expected 9 block loads, got %v", loads)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected At outside the matrix to panic")
		}
	}()
	m.At(10, 0)
}

func TestRegionDenseKeepsMissingCells(t *testing.T) {
	path := writeMatrix(t, 10, 4, valueAt)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-4); err != nil {
		t.Fatal(err)
	}
	s := openStore(t, path, nil)

	region, err := s.View(context.Background(), 6, 6, 4, 4)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	d := region.Dense()

	if r, c := d.Dims(); r != 4 || c != 4 {
		t.Fatalf("Expected a 4x4 dense matrix, got %dx%d", r, c)
	}
	if !math.IsNaN(d.At(3, 3)) {
		t.Errorf("Expected NaN for a cell of the failed block, got %v", d.At(3, 3))
	}
	if got := d.At(0, 0); got != float64(valueAt(6, 6)) {
		t.Errorf("At(0, 0) = %v, want %v", got, valueAt(6, 6))
	}
}
