package compression

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

func compressBZ2(src io.Reader, tempDir string) (*SpooledBuffer, error) {
	return runStreaming(src, tempDir, func(w io.Writer) (io.WriteCloser, error) {
		return bzip2.NewWriter(w, nil)
	})
}

func decompressBZ2(src io.Reader, tempDir string) (*SpooledBuffer, error) {
	return runDecodeStreaming(src, tempDir, func(r io.Reader) (io.Reader, error) {
		return bzip2.NewReader(r, nil)
	})
}
