package matrix

import (
	"errors"
	"fmt"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
)

var (
	// ErrOutOfRange indicates an index outside the matrix dimensions
	ErrOutOfRange = errors.New("index out of range")
	// ErrShortRead indicates the source ended before a block's payload did
	ErrShortRead = errors.New("short read")
	// ErrInvalidRegion indicates a view with a non-positive extent
	ErrInvalidRegion = errors.New("invalid region")
	// ErrRegionTooLarge indicates a view above the configured cell limit
	ErrRegionTooLarge = errors.New("region too large")
	// ErrBlockTooLarge indicates a block above MaxBlockBytes
	ErrBlockTooLarge = errors.New("block too large")
	// ErrClosed indicates use of a closed store
	ErrClosed = errors.New("store closed")
)

// LoadError describes a block that could not be read or decoded
type LoadError struct {
	Coord  blockfile.Coord
	Offset int64
	Length int64
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load block %s (offset %d, %d bytes): %v", e.Coord, e.Offset, e.Length, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
