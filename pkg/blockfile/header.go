package blockfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderMagic identifies a block matrix file. Read as a NUL terminated
	// little-endian string it spells "hic".
	HeaderMagic = int32(6515048)
	// CurrentVersion is the only format version written by this package
	CurrentVersion = int32(1)
	// MaxStringLength bounds a header string, terminator excluded
	MaxStringLength = 4096
)

var (
	ErrTruncatedHeader  = errors.New("truncated header")
	ErrBadMagic         = errors.New("bad magic number")
	ErrNonSquare        = errors.New("non-square matrices not supported")
	ErrInvalidBlockSize = errors.New("invalid block size")
	ErrInvalidDimension = errors.New("invalid matrix dimension")
	ErrStringTooLong    = errors.New("header string too long")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

// Header is the decoded fixed/variable length prefix of a block matrix file
type Header struct {
	// Magic number, normally HeaderMagic
	Magic int32
	// Version of the file format
	Version int32
	// Genome ID, e.g. "hg19"
	Genome string
	// Chr1 labels the row axis
	Chr1 string
	// Chr2 labels the column axis
	Chr2 string
	// BinSize is the genomic bin width in base pairs
	BinSize int32
	// LowerValue is a suggested display lower bound (not a data bound)
	LowerValue float32
	// UpperValue is a suggested display upper bound (not a data bound)
	UpperValue float32
	// Rows and Cols as declared; they must be equal
	Rows int32
	Cols int32
	// BlockSize is the nominal edge length of a block
	BlockSize int32
	// DataOffset is the byte offset where block data begins
	DataOffset int64
}

// ReadOptions control header validation
type ReadOptions struct {
	// VerifyMagic rejects files whose magic number is not HeaderMagic
	VerifyMagic bool
}

// Dim returns the matrix dimension
func (h *Header) Dim() int {
	return int(h.Rows)
}

// Geometry derives the block geometry described by the header
func (h *Header) Geometry() Geometry {
	return NewGeometry(int(h.Rows), int(h.BlockSize), h.DataOffset)
}

// headerDecoder accumulates the consumed byte count alongside the first error
type headerDecoder struct {
	r   *bufio.Reader
	pos int64
	err error
}

func (d *headerDecoder) readInt() int32 {
	if d.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		d.err = err
		return 0
	}
	d.pos += 4
	return int32(binary.LittleEndian.Uint32(buf[:]))
}

func (d *headerDecoder) readFloat() float32 {
	return math.Float32frombits(uint32(d.readInt()))
}

func (d *headerDecoder) readString() string {
	if d.err != nil {
		return ""
	}
	var s []byte
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			d.err = err
			return ""
		}
		if c == 0 {
			break
		}
		if len(s) == MaxStringLength {
			d.err = ErrStringTooLong
			return ""
		}
		s = append(s, c)
	}
	d.pos += int64(len(s)) + 1
	return string(s)
}

// ReadHeader decodes a header from r, which must be positioned at offset 0
func ReadHeader(r io.Reader, opts ReadOptions) (*Header, error) {
	d := &headerDecoder{r: bufio.NewReader(r)}

	h := &Header{}
	h.Magic = d.readInt()
	h.Version = d.readInt()
	h.Genome = d.readString()
	h.Chr1 = d.readString()
	h.Chr2 = d.readString()
	h.BinSize = d.readInt()
	h.LowerValue = d.readFloat()
	h.UpperValue = d.readFloat()
	h.Rows = d.readInt()
	h.Cols = d.readInt()
	h.BlockSize = d.readInt()

	if d.err != nil {
		if errors.Is(d.err, io.EOF) || errors.Is(d.err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream ended after %d bytes", ErrTruncatedHeader, d.pos)
		}
		return nil, fmt.Errorf("failed to read header: %w", d.err)
	}
	h.DataOffset = d.pos

	if opts.VerifyMagic && h.Magic != HeaderMagic {
		return nil, fmt.Errorf("%w: %d, expected %d", ErrBadMagic, h.Magic, HeaderMagic)
	}
	if h.Rows != h.Cols {
		return nil, fmt.Errorf("%w: %d rows, %d columns", ErrNonSquare, h.Rows, h.Cols)
	}
	if h.Rows < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, h.Rows)
	}
	if h.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, h.BlockSize)
	}
	// Every payload offset must fit in an int64
	if int64(h.Rows)*int64(h.Rows) > (math.MaxInt64-h.DataOffset)/FloatSize {
		return nil, fmt.Errorf("%w: %dx%d matrix", ErrPayloadTooLarge, h.Rows, h.Cols)
	}

	return h, nil
}

// Encode serializes the header. DataOffset is not stored; it is implied by
// the encoded length.
func (h *Header) Encode() []byte {
	var buf bytes.Buffer
	putInt := func(v int32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}
	putString := func(s string) {
		buf.WriteString(s)
		buf.WriteByte(0)
	}

	putInt(h.Magic)
	putInt(h.Version)
	putString(h.Genome)
	putString(h.Chr1)
	putString(h.Chr2)
	putInt(h.BinSize)
	putInt(int32(math.Float32bits(h.LowerValue)))
	putInt(int32(math.Float32bits(h.UpperValue)))
	putInt(h.Rows)
	putInt(h.Cols)
	putInt(h.BlockSize)

	return buf.Bytes()
}

// EncodedSize returns the number of header bytes preceding the payload
func (h *Header) EncodedSize() int64 {
	return int64(4*8 + len(h.Genome) + len(h.Chr1) + len(h.Chr2) + 3)
}
