// Package snapshot exports and imports whole medium images.
//
// A snapshot stream is:
//
//	magic      uint32 LE  "NVAS"
//	length     uint32 LE  size of the manifest
//	manifest   CBOR       see Manifest
//	image      bytes      the raw medium, compressed per the manifest
//
// The digest covers the raw image, so a restore detects both transport
// damage and a mismatched compressor.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/INLOpen/nvattr/compressors"
	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/medium"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// maxManifestSize bounds the manifest read from an untrusted stream.
const maxManifestSize = 4096

var (
	ErrBadMagic       = errors.New("snapshot: bad magic number")
	ErrUnsupported    = errors.New("snapshot: unsupported format version")
	ErrDigestMismatch = errors.New("snapshot: image digest mismatch")
	ErrSizeMismatch   = errors.New("snapshot: image size mismatch")
)

// Manifest describes one snapshot.
type Manifest struct {
	Version     uint8                `cbor:"version"`
	ID          string               `cbor:"id"`
	CreatedAt   int64                `cbor:"created_at"`
	Compression core.CompressionType `cbor:"compression"`
	ImageSize   int64                `cbor:"image_size"`
	Digest      []byte               `cbor:"digest"`
}

// Created returns the creation time.
func (m Manifest) Created() time.Time {
	return time.Unix(0, m.CreatedAt)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
	now     = time.Now
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 16, MaxMapPairs: 16}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

// Digest returns the blake3-256 digest of image.
func Digest(image []byte) []byte {
	sum := blake3.Sum256(image)
	return sum[:]
}

// Write reads the whole medium and writes it to w compressed with c.
func Write(w io.Writer, m medium.Medium, c core.Compressor) (Manifest, error) {
	image, err := medium.ReadImage(m)
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: read medium: %w", err)
	}
	return WriteImage(w, image, c)
}

// WriteImage writes an already captured image to w.
func WriteImage(w io.Writer, image []byte, c core.Compressor) (Manifest, error) {
	if c == nil {
		c = compressors.NewNoneCompressor()
	}
	manifest := Manifest{
		Version:     core.SnapshotFormatVersion,
		ID:          uuid.NewString(),
		CreatedAt:   now().UnixNano(),
		Compression: c.Type(),
		ImageSize:   int64(len(image)),
		Digest:      Digest(image),
	}
	encoded, err := encMode.Marshal(manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: encode manifest: %w", err)
	}

	body := core.BufferPool.Get()
	defer core.BufferPool.Put(body)
	if err := c.CompressTo(body, image); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: compress image: %w", err)
	}

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], core.SnapshotMagicNumber)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(encoded)))
	for _, part := range [][]byte{header[:], encoded, body.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return Manifest{}, fmt.Errorf("snapshot: write: %w", err)
		}
	}
	return manifest, nil
}

// Read parses a snapshot stream and returns the verified raw image.
func Read(r io.Reader) (Manifest, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Manifest{}, nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != core.SnapshotMagicNumber {
		return Manifest{}, nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, magic)
	}
	length := binary.LittleEndian.Uint32(header[4:8])
	if length == 0 || length > maxManifestSize {
		return Manifest{}, nil, fmt.Errorf("snapshot: manifest length %d out of range", length)
	}
	encoded := make([]byte, length)
	if _, err := io.ReadFull(r, encoded); err != nil {
		return Manifest{}, nil, fmt.Errorf("snapshot: read manifest: %w", err)
	}
	var manifest Manifest
	if err := decMode.Unmarshal(encoded, &manifest); err != nil {
		return Manifest{}, nil, fmt.Errorf("snapshot: decode manifest: %w", err)
	}
	if manifest.Version != core.SnapshotFormatVersion {
		return manifest, nil, fmt.Errorf("%w: %d", ErrUnsupported, manifest.Version)
	}
	if manifest.ImageSize <= 0 || manifest.ImageSize > core.MaxAddressableSize {
		return manifest, nil, fmt.Errorf("%w: manifest declares %d bytes", ErrSizeMismatch, manifest.ImageSize)
	}

	c, err := compressors.ForType(manifest.Compression)
	if err != nil {
		return manifest, nil, fmt.Errorf("snapshot: %w", err)
	}
	// No compressor expands an image past twice its size.
	body, err := io.ReadAll(io.LimitReader(r, core.MaxAddressableSize*2))
	if err != nil {
		return manifest, nil, fmt.Errorf("snapshot: read image: %w", err)
	}
	rc, err := c.Decompress(body)
	if err != nil {
		return manifest, nil, fmt.Errorf("snapshot: %w", err)
	}
	defer rc.Close()
	// One byte past the declared size is enough to detect an oversized payload.
	image, err := io.ReadAll(io.LimitReader(rc, manifest.ImageSize+1))
	if err != nil {
		return manifest, nil, fmt.Errorf("snapshot: decompress image: %w", err)
	}
	if int64(len(image)) != manifest.ImageSize {
		return manifest, nil, fmt.Errorf("%w: manifest %d, payload %d", ErrSizeMismatch, manifest.ImageSize, len(image))
	}
	if !bytes.Equal(Digest(image), manifest.Digest) {
		return manifest, nil, ErrDigestMismatch
	}
	return manifest, image, nil
}

// Restore reads a snapshot and overwrites m with it. The medium is left
// untouched unless the snapshot verifies and matches its size.
func Restore(r io.Reader, m medium.Medium) (Manifest, error) {
	manifest, image, err := Read(r)
	if err != nil {
		return manifest, err
	}
	if manifest.ImageSize != m.Size() {
		return manifest, fmt.Errorf("%w: snapshot %d bytes, medium %d bytes", ErrSizeMismatch, manifest.ImageSize, m.Size())
	}
	if err := medium.WriteImage(m, image); err != nil {
		return manifest, &core.StorageError{Op: "restore", Want: len(image), Err: err}
	}
	return manifest, nil
}
