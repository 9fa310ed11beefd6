// Package source provides random-access byte sources over local files and
// remote URLs. Every Open returns an independent source; callers own it and
// must close it.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Kind selects a byte source implementation
type Kind string

const (
	// KindAuto picks KindHTTP for http(s) URLs and KindFile otherwise
	KindAuto Kind = "auto"
	// KindFile reads through os.File.ReadAt
	KindFile Kind = "file"
	// KindMmap maps only the requested span of the file for each read
	KindMmap Kind = "mmap"
	// KindHTTP issues one HTTP range request per read
	KindHTTP Kind = "http"
)

var (
	ErrUnknownKind        = errors.New("unknown source kind")
	ErrRangeNotSupported  = errors.New("server does not support range requests")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Source is an open random-access byte source
type Source interface {
	io.ReaderAt
	io.Closer
}

// Opener opens fresh sources over one underlying location
type Opener interface {
	// Open acquires a new source. The caller must Close it.
	Open(ctx context.Context) (Source, error)
	// Location names the underlying path or URL
	Location() string
}

// Options configure New
type Options struct {
	// HTTPTimeout bounds a single HTTP range request. Zero means no timeout.
	HTTPTimeout time.Duration
}

// ParseKind converts a configuration string into a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindAuto:
		return KindAuto, nil
	case KindFile, KindMmap, KindHTTP:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// New returns an Opener of the given kind for location
func New(location string, kind Kind, opts Options) (Opener, error) {
	if kind == KindAuto || kind == "" {
		kind = KindFile
		if isURL(location) {
			kind = KindHTTP
		}
	}

	switch kind {
	case KindFile:
		return NewFileOpener(location), nil
	case KindMmap:
		return NewMmapOpener(location), nil
	case KindHTTP:
		return NewHTTPOpener(location, opts.HTTPTimeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func isURL(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Guard opens a source, hands it to fn and always closes it afterwards. A
// close failure is joined into the returned error.
func Guard(ctx context.Context, opener Opener, fn func(Source) error) (err error) {
	src, err := opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", opener.Location(), err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s: %w", opener.Location(), cerr))
		}
	}()

	return fn(src)
}

// Size reports the total size of src when the source knows it without
// reading. Local files and mmap sources do; HTTP sources do not.
func Size(src Source) (int64, bool) {
	switch s := src.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := s.Stat()
		if err != nil {
			return 0, false
		}
		return info.Size(), true
	}
	return 0, false
}

// StreamFrom adapts a source into a sequential reader starting at offset
func StreamFrom(src Source, offset int64) io.Reader {
	return io.NewSectionReader(src, offset, 1<<63-1-offset)
}
