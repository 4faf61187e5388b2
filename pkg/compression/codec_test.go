package compression

import (
	"bytes"
	"io"
	"testing"
)

func TestRoundTripAllAlgorithms(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 2000)

	for _, algo := range Supported {
		algo := algo
		t.Run(string(algo), func(t *testing.T) {
			comp, err := Compressor(algo)
			if err != nil {
				t.Fatalf("Compressor(%s): %v", algo, err)
			}
			compressed, err := comp.Transform(bytes.NewReader(payload), t.TempDir())
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			cr, err := compressed.Reader()
			if err != nil {
				t.Fatalf("reader: %v", err)
			}
			defer cr.Close()

			decomp, err := Decompressor(algo)
			if err != nil {
				t.Fatalf("Decompressor(%s): %v", algo, err)
			}
			decompressed, err := decomp.Transform(cr, t.TempDir())
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			dr, err := decompressed.Reader()
			if err != nil {
				t.Fatalf("reader: %v", err)
			}
			defer dr.Close()

			got, err := io.ReadAll(dr)
			if err != nil {
				t.Fatalf("read all: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round-trip mismatch for %s: got %d bytes, want %d", algo, len(got), len(payload))
			}
		})
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	if _, err := Compressor("zzz"); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	} else if _, ok := err.(*ErrUnsupportedAlgorithm); !ok {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %T", err)
	}
}

func TestSpooledBufferSpillsToDisk(t *testing.T) {
	sb := NewSpooledBuffer(t.TempDir())
	payload := bytes.Repeat([]byte("x"), int(SpillThreshold)+1024)
	if _, err := sb.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !sb.spilled {
		t.Fatalf("expected buffer to have spilled to disk")
	}
	r, err := sb.Reader()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("spooled buffer round-trip mismatch")
	}
}
