package remote

import (
	"bytes"
	"io"
	"testing"
)

func TestZstdStreamRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("dee bundle compression test data\n"), 100)
	var compressed bytes.Buffer
	zw, err := newZstdWriter(&compressed)
	if err != nil {
		t.Fatalf("newZstdWriter: %v", err)
	}
	if _, err := zw.Write(original); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if compressed.Len() >= len(original) {
		t.Logf("warning: compressed %d >= original %d", compressed.Len(), len(original))
	}

	zr, err := newZstdReader(&compressed)
	if err != nil {
		t.Fatalf("newZstdReader: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatalf("stream round-trip mismatch: got %d bytes, want %d", len(got), len(original))
	}
}

func TestZstdReaderRejectsGarbage(t *testing.T) {
	zr, err := newZstdReader(bytes.NewReader([]byte("definitely not zstd")))
	if err != nil {
		return
	}
	defer zr.Close()
	if _, err := io.ReadAll(zr); err == nil {
		t.Fatal("expected error decoding garbage")
	}
}
