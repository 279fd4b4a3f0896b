package main

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// resolveCache returns a local path for path. Local paths pass through
// unchanged; a URL is downloaded into cacheDir (keyed by a hash of the
// URL, suffix preserved so internal/ingest/source still picks the right
// decompressor) and the cached copy is reused on a later run with the
// same cacheDir, avoiding a re-fetch of an archive that never changes
// once published.
func resolveCache(ctx context.Context, path, cacheDir string) (string, error) {
	if cacheDir == "" || !isURL(path) {
		return path, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	sum := sha1.Sum([]byte(path))
	cached := filepath.Join(cacheDir, hex.EncodeToString(sum[:])+filepath.Ext(path))

	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", path, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %s", path, resp.Status)
	}

	tmp := cached + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("writing cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, cached); err != nil {
		return "", fmt.Errorf("finalizing cache file: %w", err)
	}

	return cached, nil
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
