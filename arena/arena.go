// Package arena allocates contiguous byte ranges from the value region of
// the medium. The next free address is persisted right after the directory.
// Allocation is append-only: nothing is ever reclaimed.
package arena

import (
	"encoding/binary"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/medium"
)

// Allocator hands out value region space. It is not reentrant; the store
// holds its lock across the read-compute-write of the cursor.
type Allocator struct {
	m      medium.Medium
	layout core.Layout
}

func New(m medium.Medium, layout core.Layout) *Allocator {
	return &Allocator{m: m, layout: layout}
}

// Cursor reads the persisted next free address. A cursor outside the value
// region means the header was damaged.
func (a *Allocator) Cursor() (uint16, error) {
	var buf [core.CursorWidth]byte
	off := a.layout.CursorOffset()
	n, err := a.m.ReadAt(buf[:], off)
	if n != len(buf) {
		return 0, &core.StorageError{Op: "read", Offset: off, Want: len(buf), Got: n, Err: err}
	}
	cursor := binary.LittleEndian.Uint16(buf[:])
	if int64(cursor) < a.layout.ValueStart() || int64(cursor) > a.layout.ValueEnd() {
		return 0, &core.IntegrityError{Region: core.RegionCursor, Want: uint32(a.layout.ValueStart()), Got: uint32(cursor)}
	}
	return cursor, nil
}

func (a *Allocator) writeCursor(cursor uint16) error {
	var buf [core.CursorWidth]byte
	binary.LittleEndian.PutUint16(buf[:], cursor)
	off := a.layout.CursorOffset()
	n, err := a.m.WriteAt(buf[:], off)
	if n != len(buf) {
		return &core.StorageError{Op: "write", Offset: off, Want: len(buf), Got: n, Err: err}
	}
	return nil
}

// Reset points the cursor at the start of the value region.
func (a *Allocator) Reset() error {
	return a.writeCursor(uint16(a.layout.ValueStart()))
}

// Allocate reserves length bytes plus the trailing CRC and returns the start
// address. An allocation that would run past the value region fails with
// ErrArenaFull and leaves the cursor untouched.
func (a *Allocator) Allocate(length int) (uint16, error) {
	cursor, err := a.Cursor()
	if err != nil {
		return 0, err
	}
	next := int64(cursor) + int64(length) + core.CRCWidth
	if next > a.layout.ValueEnd() {
		return 0, &core.StorageError{Op: "allocate", Offset: int64(cursor), Want: length + core.CRCWidth,
			Got: int(a.layout.ValueEnd() - int64(cursor)), Err: core.ErrArenaFull}
	}
	if err := a.writeCursor(uint16(next)); err != nil {
		return 0, err
	}
	return cursor, nil
}

// Remaining returns the bytes left in the value region, CRC overhead included.
func (a *Allocator) Remaining() (int64, error) {
	cursor, err := a.Cursor()
	if err != nil {
		return 0, err
	}
	return a.layout.ValueEnd() - int64(cursor), nil
}
