package core

import (
	"bytes"
	"io"
)

// AttributeID identifies an attribute. The id space is small and dense, so
// an id doubles as the index of its directory slot.
type AttributeID uint8

// SlotIndex maps an attribute id to its directory slot. The mapping is the
// identity: the directory is pre-sized to the full id space. A sparse or wide
// id space would need a real index structure instead.
func SlotIndex(id AttributeID) int {
	return int(id)
}

// CompressionType identifies the compression algorithm used.
// This will be stored in snapshot manifests to know how to decompress.
type CompressionType byte

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
	CompressionLZ4    CompressionType = 2
	CompressionZSTD   CompressionType = 3
)

// Compressor defines the interface for compression and decompression algorithms.
type Compressor interface {
	// Compress compresses the input data.
	Compress(data []byte) ([]byte, error)
	CompressTo(dst *bytes.Buffer, src []byte) error
	// Decompress decompresses the input data.
	Decompress(data []byte) (io.ReadCloser, error)
	// Type returns the CompressionType identifier for this compressor.
	Type() CompressionType
}

// String returns the string representation of the CompressionType.
func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompressionType is the inverse of CompressionType.String.
func ParseCompressionType(s string) (CompressionType, bool) {
	switch s {
	case "none":
		return CompressionNone, true
	case "snappy":
		return CompressionSnappy, true
	case "lz4":
		return CompressionLZ4, true
	case "zstd":
		return CompressionZSTD, true
	default:
		return CompressionNone, false
	}
}
