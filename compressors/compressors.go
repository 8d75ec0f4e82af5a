// Package compressors implements core.Compressor for the algorithms a
// snapshot image may be stored with.
package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/nvattr/core"
)

// memReadCloser exposes an in-memory result as an io.ReadCloser.
type memReadCloser struct {
	*bytes.Reader
}

func (m *memReadCloser) Close() error { return nil }

func newMemReadCloser(b []byte) io.ReadCloser {
	return &memReadCloser{Reader: bytes.NewReader(b)}
}

// ForType returns a compressor for ct.
func ForType(ct core.CompressionType) (core.Compressor, error) {
	switch ct {
	case core.CompressionNone:
		return NewNoneCompressor(), nil
	case core.CompressionSnappy:
		return NewSnappyCompressor(), nil
	case core.CompressionLZ4:
		return NewLZ4Compressor(), nil
	case core.CompressionZSTD:
		return NewZstdCompressor(), nil
	default:
		return nil, fmt.Errorf("unsupported compression type %d", ct)
	}
}

// ForName returns a compressor for a configuration name such as "zstd".
func ForName(name string) (core.Compressor, error) {
	ct, ok := core.ParseCompressionType(name)
	if !ok {
		return nil, fmt.Errorf("unknown compression %q", name)
	}
	return ForType(ct)
}

// DecompressAll decompresses data and reads the whole result.
func DecompressAll(c core.Compressor, data []byte) ([]byte, error) {
	rc, err := c.Decompress(data)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%s decompress read error: %w", c.Type(), err)
	}
	return out, nil
}
