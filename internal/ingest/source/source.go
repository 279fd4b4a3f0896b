// Package source opens a byte source — a local file path or an http(s) URL
// — and wraps it with the right decompressor based on its suffix, the way
// bgpipe's read stage picks a decompressor by file extension. It never
// touches MRT/BGP semantics: callers hand the returned io.Reader straight
// to the decoder.
package source

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Opened is a byte source ready for decoding, plus the underlying closer(s)
// the caller must release once done reading.
type Opened struct {
	Reader io.Reader
	closer func() error
}

func (o *Opened) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer()
}

// Open opens path as a local file or, when it looks like a URL, fetches it
// over HTTP, then wraps the resulting stream with a decompressor chosen by
// suffix: ".gz"/".gzip" (stdlib gzip), ".bz2"/".bzip2" (stdlib bzip2,
// decode-only — this repo never recompresses), ".zst"/".zstd"
// (klauspost/compress/zstd). Any other suffix is read uncompressed.
func Open(ctx context.Context, path string) (*Opened, error) {
	raw, closeRaw, err := openRaw(ctx, path)
	if err != nil {
		return nil, err
	}

	switch suffix(path) {
	case ".gz", ".gzip":
		gz, err := gzip.NewReader(raw)
		if err != nil {
			closeRaw()
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return &Opened{
			Reader: gz,
			closer: func() error {
				gz.Close()
				return closeRaw()
			},
		}, nil

	case ".bz2", ".bzip2":
		return &Opened{Reader: bzip2.NewReader(raw), closer: closeRaw}, nil

	case ".zst", ".zstd":
		zr, err := zstd.NewReader(raw)
		if err != nil {
			closeRaw()
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return &Opened{
			Reader: zr,
			closer: func() error {
				zr.Close()
				return closeRaw()
			},
		}, nil

	default:
		return &Opened{Reader: raw, closer: closeRaw}, nil
	}
}

func openRaw(ctx context.Context, path string) (io.Reader, func() error, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("building request for %s: %w", path, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching %s: %w", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, nil, fmt.Errorf("fetching %s: status %s", path, resp.Status)
		}
		return resp.Body, resp.Body.Close, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, f.Close, nil
}

func suffix(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i:])
}
