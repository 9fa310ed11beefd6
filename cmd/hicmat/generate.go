package main

import (
	"fmt"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
)

// contactValue imitates an intra-chromosomal contact map: symmetric, with
// counts falling off with the distance from the diagonal
func contactValue(row, col int) float32 {
	d := row - col
	if d < 0 {
		d = -d
	}
	return 1000 / float32(1+d)
}

// generateMatrix writes a synthetic dim x dim contact matrix to path
func generateMatrix(path string, dim, blockSize int, genome, chrom string, binSize int) error {
	if dim <= 0 || blockSize <= 0 {
		return fmt.Errorf("dimension and block size must be positive, got %d and %d", dim, blockSize)
	}

	h := blockfile.NewHeader(genome, chrom, chrom, int32(binSize), int32(dim), int32(blockSize))
	h.LowerValue = contactValue(0, dim-1)
	h.UpperValue = contactValue(0, 0)
	return blockfile.WriteFile(path, h, contactValue)
}
