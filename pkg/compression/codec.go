// Package compression implements the C1 codec registry: streaming
// compression and decompression over the algorithms a record's
// physical.format.comp may name (§4.1).
package compression

import (
	"fmt"
	"io"
)

// Algorithm identifies a supported compression algorithm. The empty string
// is never a valid Algorithm value on the wire — the record model
// represents "uncompressed" with a nil *string, not with Algorithm("").
type Algorithm string

const (
	GZip Algorithm = "gzip"
	BZ2  Algorithm = "bz2"
	LZMA Algorithm = "lzma"
)

// Supported is the complete set of algorithms this registry knows. Server
// configuration (compression_formats) may further restrict which of these
// are accepted on put/compression-policy (§6).
var Supported = []Algorithm{GZip, BZ2, LZMA}

// ErrUnsupportedAlgorithm is returned by Compressor/Decompressor for any
// algorithm this registry does not implement.
type ErrUnsupportedAlgorithm struct {
	Algorithm Algorithm
}

func (e *ErrUnsupportedAlgorithm) Error() string {
	return fmt.Sprintf("compression: unsupported algorithm %q", e.Algorithm)
}

// Codec streams a byte source through a (de)compression transform into a
// spooled buffer (§4.1). tempDir is forwarded to the backing SpooledBuffer
// so callers can keep spill files colocated with other staging I/O.
type Codec interface {
	Transform(src io.Reader, tempDir string) (*SpooledBuffer, error)
}

type codecFunc func(src io.Reader, tempDir string) (*SpooledBuffer, error)

func (f codecFunc) Transform(src io.Reader, tempDir string) (*SpooledBuffer, error) {
	return f(src, tempDir)
}

// Compressor returns a streaming compressor for algo.
func Compressor(algo Algorithm) (Codec, error) {
	switch algo {
	case GZip:
		return codecFunc(compressGzip), nil
	case BZ2:
		return codecFunc(compressBZ2), nil
	case LZMA:
		return codecFunc(compressLZMA), nil
	default:
		return nil, &ErrUnsupportedAlgorithm{Algorithm: algo}
	}
}

// Decompressor returns a streaming decompressor for algo.
func Decompressor(algo Algorithm) (Codec, error) {
	switch algo {
	case GZip:
		return codecFunc(decompressGzip), nil
	case BZ2:
		return codecFunc(decompressBZ2), nil
	case LZMA:
		return codecFunc(decompressLZMA), nil
	default:
		return nil, &ErrUnsupportedAlgorithm{Algorithm: algo}
	}
}

// runStreaming drives a chunked copy from src through an io.WriteCloser
// encoder/decoder into a SpooledBuffer, discarding partial output on any
// failure (§4.1: "Any codec error is fatal to the in-flight operation;
// partial output is discarded").
func runStreaming(src io.Reader, tempDir string, newTransform func(io.Writer) (io.WriteCloser, error)) (*SpooledBuffer, error) {
	out := NewSpooledBuffer(tempDir)
	w, err := newTransform(out)
	if err != nil {
		out.Discard()
		return nil, fmt.Errorf("compression: open transform: %w", err)
	}
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(w, src, buf); err != nil {
		w.Close()
		out.Discard()
		return nil, fmt.Errorf("compression: stream data: %w", err)
	}
	if err := w.Close(); err != nil {
		out.Discard()
		return nil, fmt.Errorf("compression: flush transform: %w", err)
	}
	return out, nil
}

// runDecodeStreaming drives a chunked copy from a decoding io.Reader
// (constructed over src) into a SpooledBuffer.
func runDecodeStreaming(src io.Reader, tempDir string, newReader func(io.Reader) (io.Reader, error)) (*SpooledBuffer, error) {
	out := NewSpooledBuffer(tempDir)
	r, err := newReader(src)
	if err != nil {
		out.Discard()
		return nil, fmt.Errorf("compression: open transform: %w", err)
	}
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(out, r, buf); err != nil {
		out.Discard()
		return nil, fmt.Errorf("compression: stream data: %w", err)
	}
	if closer, ok := r.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			out.Discard()
			return nil, fmt.Errorf("compression: close transform: %w", err)
		}
	}
	return out, nil
}
