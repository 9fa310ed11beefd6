package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapOpener opens a local file whose reads are served from short-lived
// read-only mappings
type MmapOpener struct {
	path string
}

// NewMmapOpener creates an MmapOpener for path
func NewMmapOpener(path string) *MmapOpener {
	return &MmapOpener{path: path}
}

// Open opens the file and records its size
func (o *MmapOpener) Open(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(o.path)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &mmapSource{f: f, size: stat.Size(), pageSize: int64(os.Getpagesize())}, nil
}

// Location returns the file path
func (o *MmapOpener) Location() string {
	return o.path
}

type mmapSource struct {
	f        *os.File
	size     int64
	pageSize int64
}

// ReadAt maps the page-aligned span covering [off, off+len(p)), copies it
// out and unmaps it again
func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	avail := int64(len(p))
	if off+avail > s.size {
		avail = s.size - off
	}

	aligned := off &^ (s.pageSize - 1)
	delta := off - aligned

	region, err := mmap.MapRegion(s.f, int(delta+avail), mmap.RDONLY, 0, aligned)
	if err != nil {
		return 0, fmt.Errorf("failed to map %d bytes at %d: %w", delta+avail, aligned, err)
	}
	adviseRandom(region)

	n := copy(p, region[delta:])
	if err := region.Unmap(); err != nil {
		return n, fmt.Errorf("failed to unmap region: %w", err)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the file size recorded at Open
func (s *mmapSource) Size() int64 {
	return s.size
}

func (s *mmapSource) Close() error {
	return s.f.Close()
}
