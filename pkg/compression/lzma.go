package compression

import (
	"io"

	"github.com/ulikunitz/xz/lzma"
)

func compressLZMA(src io.Reader, tempDir string) (*SpooledBuffer, error) {
	return runStreaming(src, tempDir, func(w io.Writer) (io.WriteCloser, error) {
		return lzma.NewWriter(w)
	})
}

func decompressLZMA(src io.Reader, tempDir string) (*SpooledBuffer, error) {
	return runDecodeStreaming(src, tempDir, func(r io.Reader) (io.Reader, error) {
		return lzma.NewReader(r)
	})
}
