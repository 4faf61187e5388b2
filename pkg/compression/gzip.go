package compression

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

func compressGzip(src io.Reader, tempDir string) (*SpooledBuffer, error) {
	return runStreaming(src, tempDir, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	})
}

func decompressGzip(src io.Reader, tempDir string) (*SpooledBuffer, error) {
	return runDecodeStreaming(src, tempDir, func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	})
}
