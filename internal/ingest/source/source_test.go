package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestOpenPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.mrt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	got, err := io.ReadAll(o.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("expected 'hello', got %q", got)
	}
}

func TestOpenGzipFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.mrt.gz")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("compressed payload"))
	gw.Close()

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	got, err := io.ReadAll(o.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "compressed payload" {
		t.Errorf("expected 'compressed payload', got %q", got)
	}
}

func TestOpenZstdFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.mrt.zst")

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	zw.Write([]byte("zstd payload"))
	zw.Close()

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	got, err := io.ReadAll(o.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "zstd payload" {
		t.Errorf("expected 'zstd payload', got %q", got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), "/nonexistent/path/does-not-exist.mrt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSuffix(t *testing.T) {
	cases := map[string]string{
		"foo.mrt":      ".mrt",
		"foo.mrt.gz":   ".gz",
		"foo.mrt.bz2":  ".bz2",
		"foo.mrt.zst":  ".zst",
		"no-extension": "",
	}
	for path, want := range cases {
		if got := suffix(path); got != want {
			t.Errorf("suffix(%q) = %q, want %q", path, got, want)
		}
	}
}
