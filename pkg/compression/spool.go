package compression

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// SpillThreshold is the in-memory buffer size past which a SpooledBuffer
// transparently spills to a temp file on disk (§4.1: "≈256 KiB in-memory
// threshold"). The composition root overrides it from
// internal/config.CompressionConfig.SpoolThreshold at startup; tests and
// any caller that never touches config get the §4.1 default.
var SpillThreshold int64 = 256 * 1024

// ChunkSize is the read/write chunk size used while streaming through a
// codec (§4.1: "fixed-size chunks (≈32 KiB)").
const ChunkSize = 32 * 1024

// SpooledBuffer accumulates written bytes in memory up to SpillThreshold,
// then spills to a temp file. It mirrors Python's SpooledTemporaryFile, the
// pattern the original compression.py built its (de)compression pipeline
// on: small results never touch disk, large ones do not blow up memory.
type SpooledBuffer struct {
	mem     bytes.Buffer
	file    *os.File
	spilled bool
	size    int64
	tempDir string
}

// NewSpooledBuffer creates an empty spooled buffer. tempDir controls where
// the backing file is created if the buffer spills; "" uses the OS default.
func NewSpooledBuffer(tempDir string) *SpooledBuffer {
	return &SpooledBuffer{tempDir: tempDir}
}

// Write implements io.Writer, spilling to disk the first time the
// accumulated size exceeds SpillThreshold.
func (s *SpooledBuffer) Write(p []byte) (int, error) {
	s.size += int64(len(p))
	if s.spilled {
		return s.file.Write(p)
	}
	if int64(s.mem.Len()+len(p)) <= SpillThreshold {
		return s.mem.Write(p)
	}
	f, err := os.CreateTemp(s.tempDir, "mediastorage-spool-*")
	if err != nil {
		return 0, fmt.Errorf("compression: spill to disk: %w", err)
	}
	if _, err := f.Write(s.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return 0, fmt.Errorf("compression: flush memory buffer to spill file: %w", err)
	}
	s.mem.Reset()
	s.file = f
	s.spilled = true
	return s.file.Write(p)
}

// Size returns the total number of bytes written so far.
func (s *SpooledBuffer) Size() int64 { return s.size }

// Reader seeks the buffer back to the start and returns an io.ReadCloser
// over its full contents. Closing it releases any backing temp file.
func (s *SpooledBuffer) Reader() (io.ReadCloser, error) {
	if !s.spilled {
		return io.NopCloser(bytes.NewReader(s.mem.Bytes())), nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("compression: seek spill file: %w", err)
	}
	return &spillFileReader{f: s.file}, nil
}

// Discard releases any backing temp file without returning a reader. Used
// when a codec error aborts an in-flight operation (§4.1 failure semantics:
// partial output is discarded).
func (s *SpooledBuffer) Discard() {
	if s.spilled {
		s.file.Close()
		os.Remove(s.file.Name())
	}
	s.mem.Reset()
}

// spillFileReader closes and removes the backing temp file on Close.
type spillFileReader struct {
	f *os.File
}

func (r *spillFileReader) Read(p []byte) (int, error) { return r.f.Read(p) }

func (r *spillFileReader) Close() error {
	name := r.f.Name()
	err := r.f.Close()
	os.Remove(name)
	return err
}
