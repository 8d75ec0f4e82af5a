package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/nvattr/core"
	lz4 "github.com/pierrec/lz4/v4"
)

// LZ4Compressor uses the LZ4 frame format, which records the content size
// so decompression needs no size guess.
type LZ4Compressor struct {
	level lz4.CompressionLevel
}

var _ core.Compressor = (*LZ4Compressor)(nil)

func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{level: lz4.Fast}
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	if err := c.CompressTo(buf, data); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (c *LZ4Compressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	zw := lz4.NewWriter(dst)
	if err := zw.Apply(lz4.CompressionLevelOption(c.level), lz4.SizeOption(uint64(len(src)))); err != nil {
		return fmt.Errorf("lz4 writer options error: %w", err)
	}
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		return fmt.Errorf("lz4 compress write error: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("lz4 compress close error: %w", err)
	}
	return nil
}

func (c *LZ4Compressor) Decompress(data []byte) (io.ReadCloser, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress error: %w", err)
	}
	return newMemReadCloser(out), nil
}

func (c *LZ4Compressor) Type() core.CompressionType { return core.CompressionLZ4 }
