package blockfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/natefinch/atomic"
)

// ErrInvalidHeader is returned when a header cannot be encoded as given
var ErrInvalidHeader = errors.New("invalid header")

// ValueFunc supplies the matrix element at (row, col)
type ValueFunc func(row, col int) float32

// Dense returns a ValueFunc reading a row-major dim x dim slice
func Dense(dim int, values []float32) ValueFunc {
	return func(row, col int) float32 {
		return values[row*dim+col]
	}
}

// NewHeader returns a header for a square matrix with the current magic
// and version filled in
func NewHeader(genome, chr1, chr2 string, binSize int32, dim, blockSize int32) *Header {
	return &Header{
		Magic:     HeaderMagic,
		Version:   CurrentVersion,
		Genome:    genome,
		Chr1:      chr1,
		Chr2:      chr2,
		BinSize:   binSize,
		Rows:      dim,
		Cols:      dim,
		BlockSize: blockSize,
	}
}

func (h *Header) validateForWrite() error {
	for _, s := range []string{h.Genome, h.Chr1, h.Chr2} {
		if strings.IndexByte(s, 0) >= 0 {
			return fmt.Errorf("%w: string %q contains NUL", ErrInvalidHeader, s)
		}
		if len(s) > MaxStringLength {
			return fmt.Errorf("%w: %w", ErrInvalidHeader, ErrStringTooLong)
		}
	}
	if h.Rows != h.Cols {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, ErrNonSquare)
	}
	if h.Rows < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, ErrInvalidDimension)
	}
	if h.BlockSize <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, ErrInvalidBlockSize)
	}
	return nil
}

// Encode writes the header followed by the payload in block-row-major
// order. h.DataOffset is updated to the encoded header length.
func Encode(w io.Writer, h *Header, value ValueFunc) error {
	if err := h.validateForWrite(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(h.Encode()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	h.DataOffset = h.EncodedSize()

	g := h.Geometry()
	var buf [FloatSize]byte
	for br := 0; br < g.BlocksPerAxis(); br++ {
		rowDim := g.Extent(br)
		for bc := 0; bc < g.BlocksPerAxis(); bc++ {
			colDim := g.Extent(bc)
			for r := 0; r < rowDim; r++ {
				for c := 0; c < colDim; c++ {
					v := value(br*g.BlockSize+r, bc*g.BlockSize+c)
					binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
					if _, err := bw.Write(buf[:]); err != nil {
						return fmt.Errorf("failed to write block %s: %w", Coord{br, bc}, err)
					}
				}
			}
		}
	}

	return bw.Flush()
}

// WriteFile encodes a matrix into path. The file is replaced atomically so
// readers never observe a partially written matrix.
func WriteFile(path string, h *Header, value ValueFunc) error {
	var buf bytes.Buffer
	if err := Encode(&buf, h, value); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
