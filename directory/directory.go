// Package directory implements the allocation directory: a direct-mapped
// array of fixed-width records, one per attribute id, at the start of the
// medium.
//
// Slot addresses are computed as id * RecordWidth. That only works because
// the id space is small, dense and fully pre-allocated; a sparse or wide id
// space would need a real index.
package directory

import (
	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/medium"
)

// Directory reads and writes slots. It holds no lock: the store serializes
// every slot read-modify-write.
type Directory struct {
	m      medium.Medium
	layout core.Layout
}

func New(m medium.Medium, layout core.Layout) *Directory {
	return &Directory{m: m, layout: layout}
}

// SlotAddress returns the medium offset of id's slot.
func (d *Directory) SlotAddress(id core.AttributeID) int64 {
	return d.layout.SlotAddress(id)
}

// Lookup reads and checks the slot for id. An erased slot decodes as
// UnusedRecord without error; any other slot whose CRC does not match
// fails with an IntegrityError.
func (d *Directory) Lookup(id core.AttributeID) (Record, error) {
	if int(id) >= d.layout.Slots {
		return Record{}, core.ErrNotFound
	}
	var buf [core.RecordWidth]byte
	addr := d.SlotAddress(id)
	n, err := d.m.ReadAt(buf[:], addr)
	if n != len(buf) {
		return Record{}, &core.StorageError{Op: "read", Offset: addr, Want: len(buf), Got: n, Err: err}
	}
	if erased(buf) {
		return UnusedRecord, nil
	}
	rec := DecodeRecord(buf)
	if !rec.Valid() {
		return rec, &core.IntegrityError{ID: id, Region: core.RegionDirectory, Want: uint32(rec.CRC), Got: uint32(rec.computeCRC())}
	}
	return rec, nil
}

// Store seals rec and writes it to id's slot.
func (d *Directory) Store(id core.AttributeID, rec Record) error {
	if int(id) >= d.layout.Slots {
		return &core.StorageError{Op: "write", Offset: d.SlotAddress(id), Want: core.RecordWidth, Err: medium.ErrOutOfRange}
	}
	rec.Seal()
	buf := rec.Encode()
	addr := d.SlotAddress(id)
	n, err := d.m.WriteAt(buf[:], addr)
	if n != len(buf) {
		return &core.StorageError{Op: "write", Offset: addr, Want: len(buf), Got: n, Err: err}
	}
	return nil
}

// Format writes the erased pattern over every slot.
func (d *Directory) Format() error {
	buf := make([]byte, d.layout.DirectorySize())
	for i := range buf {
		buf[i] = core.ErasedByte
	}
	n, err := d.m.WriteAt(buf, 0)
	if n != len(buf) {
		return &core.StorageError{Op: "write", Offset: 0, Want: len(buf), Got: n, Err: err}
	}
	return nil
}
