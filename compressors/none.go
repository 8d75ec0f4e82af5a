package compressors

import (
	"bytes"
	"io"

	"github.com/INLOpen/nvattr/core"
)

// NoneCompressor stores data as is.
type NoneCompressor struct{}

var _ core.Compressor = (*NoneCompressor)(nil)

func NewNoneCompressor() *NoneCompressor { return &NoneCompressor{} }

func (c *NoneCompressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *NoneCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	dst.Write(src)
	return nil
}

func (c *NoneCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	return newMemReadCloser(data), nil
}

func (c *NoneCompressor) Type() core.CompressionType { return core.CompressionNone }
