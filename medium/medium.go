// Package medium provides the byte-addressable storage the attribute store
// is laid out on: an in-memory image for tests and simulations, and a
// file-backed image standing in for flash or EEPROM.
package medium

import (
	"errors"
	"io"
)

var (
	// ErrOutOfRange is returned for transfers that start or end outside the medium.
	ErrOutOfRange = errors.New("medium: access out of range")
	// ErrClosed is returned for transfers on a closed medium.
	ErrClosed = errors.New("medium: closed")
)

// Medium is a fixed-size linear address space. Transfers that cross the end
// of the medium are short; callers must compare the byte count with the
// request.
type Medium interface {
	io.ReaderAt
	io.WriterAt
	// Size returns the capacity of the medium in bytes.
	Size() int64
	// Erase overwrites the whole medium with fill.
	Erase(fill byte) error
	Sync() error
	Close() error
}

// ReadImage copies the whole medium into a new buffer.
func ReadImage(m Medium) ([]byte, error) {
	image := make([]byte, m.Size())
	n, err := m.ReadAt(image, 0)
	if n == len(image) {
		return image, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// WriteImage overwrites the whole medium with image, which must match its size.
func WriteImage(m Medium, image []byte) error {
	if int64(len(image)) != m.Size() {
		return ErrOutOfRange
	}
	n, err := m.WriteAt(image, 0)
	if n == len(image) {
		return m.Sync()
	}
	if err == nil {
		err = io.ErrShortWrite
	}
	return err
}
