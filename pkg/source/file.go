package source

import (
	"context"
	"os"
)

// FileOpener opens a local file for each read
type FileOpener struct {
	path string
}

// NewFileOpener creates a FileOpener for path
func NewFileOpener(path string) *FileOpener {
	return &FileOpener{path: path}
}

// Open opens the file read-only
func (o *FileOpener) Open(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(o.path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Location returns the file path
func (o *FileOpener) Location() string {
	return o.path
}
