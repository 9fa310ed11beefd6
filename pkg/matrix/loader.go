package matrix

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
	"github.com/KevoDB/blockmatrix/pkg/source"
)

// MaxBlockBytes bounds the payload of a single block. Larger blocks are
// reported as load failures instead of being allocated.
const MaxBlockBytes = 1 << 28

// loader reads single blocks. Each load opens its own handle on the source
// and releases it before returning, so loads of different blocks never share
// a file position.
type loader struct {
	opener source.Opener
	geom   blockfile.Geometry
}

func newLoader(opener source.Opener, geom blockfile.Geometry) *loader {
	return &loader{opener: opener, geom: geom}
}

// load reads and decodes the block at c. Every failure is a *LoadError.
func (l *loader) load(ctx context.Context, c blockfile.Coord) (*Block, error) {
	r := l.geom.Range(c)
	length := r.Length()

	fail := func(err error) (*Block, error) {
		return nil, &LoadError{Coord: c, Offset: r.Offset, Length: length, Err: err}
	}
	if length <= 0 {
		return fail(fmt.Errorf("%w: %dx%d block", ErrInvalidRegion, r.Rows, r.Cols))
	}
	if length > MaxBlockBytes {
		return fail(fmt.Errorf("%w: %d bytes, limit %d", ErrBlockTooLarge, length, MaxBlockBytes))
	}

	var buf []byte
	err := source.Guard(ctx, l.opener, func(src source.Source) error {
		if size, ok := source.Size(src); ok && r.Offset+length > size {
			// Skip the allocation for a block the file cannot hold
			return fmt.Errorf("%w: block ends at %d, source has %d bytes", ErrShortRead, r.Offset+length, size)
		}

		buf = make([]byte, length)
		n, err := src.ReadAt(buf, r.Offset)
		if n == len(buf) {
			// io.ReaderAt may report io.EOF alongside a full read
			return nil
		}
		if err == nil || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(buf))
		}
		return err
	})
	if err != nil {
		return fail(err)
	}

	return newBlock(c, r.Rows, r.Cols, decodeFloats(buf)), nil
}

func decodeFloats(buf []byte) []float32 {
	data := make([]float32, len(buf)/blockfile.FloatSize)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*blockfile.FloatSize:]))
	}
	return data
}
