package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOpener reads a remote file through HTTP range requests
type HTTPOpener struct {
	url    string
	client *http.Client
}

// NewHTTPOpener creates an HTTPOpener. A zero timeout disables the
// per-request deadline.
func NewHTTPOpener(url string, timeout time.Duration) *HTTPOpener {
	return &HTTPOpener{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPOpenerWithClient creates an HTTPOpener that uses client
func NewHTTPOpenerWithClient(url string, client *http.Client) *HTTPOpener {
	return &HTTPOpener{url: url, client: client}
}

// Open returns a source bound to ctx. No request is made until ReadAt.
func (o *HTTPOpener) Open(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpSource{ctx: ctx, url: o.url, client: o.client}, nil
}

// Location returns the URL
func (o *HTTPOpener) Location() string {
	return o.url
}

type httpSource struct {
	ctx    context.Context
	url    string
	client *http.Client
	closed bool
}

func (s *httpSource) ReadAt(p []byte, off int64) (int, error) {
	if s.closed {
		return 0, errors.New("source is closed")
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("range request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case http.StatusOK:
		return 0, fmt.Errorf("%w: %s", ErrRangeNotSupported, s.url)
	default:
		return 0, fmt.Errorf("%w: %s for %s", ErrUnexpectedResponse, resp.Status, s.url)
	}

	n, err := io.ReadFull(resp.Body, p)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return n, io.EOF
	}
	if err != nil {
		return n, fmt.Errorf("failed to read response body: %w", err)
	}
	return n, nil
}

func (s *httpSource) Close() error {
	s.closed = true
	return nil
}
