package directory

import (
	"encoding/binary"

	"github.com/INLOpen/nvattr/checksum"
	"github.com/INLOpen/nvattr/core"
)

// Record is one fixed-width directory slot.
//
//	| start (LE uint16) | length | crc8(start, length) |
//
// Start is the medium address of the value; the attribute id is not stored
// because it is implied by the slot address.
type Record struct {
	Start  uint16
	Length uint8
	CRC    uint8
}

// UnusedRecord is the decoded form of a slot that was never written.
var UnusedRecord = Record{Start: 0xFFFF, Length: core.SentinelLength, CRC: core.ErasedByte}

// NewRecord returns a sealed record for a value of length bytes at start.
func NewRecord(start uint16, length uint8) Record {
	r := Record{Start: start, Length: length}
	r.CRC = r.computeCRC()
	return r
}

// Unused reports whether the record carries the sentinel length.
func (r Record) Unused() bool { return r.Length == core.SentinelLength }

// Valid reports whether the stored CRC matches the record's fields.
func (r Record) Valid() bool { return r.CRC == r.computeCRC() }

// Seal stamps the CRC over the start and length fields.
func (r *Record) Seal() { r.CRC = r.computeCRC() }

func (r Record) computeCRC() uint8 {
	var fields [core.RecordWidth - 1]byte
	binary.LittleEndian.PutUint16(fields[0:2], r.Start)
	fields[2] = r.Length
	return checksum.CRC8(fields[:])
}

// Encode returns the on-medium form of the record.
func (r Record) Encode() [core.RecordWidth]byte {
	var buf [core.RecordWidth]byte
	binary.LittleEndian.PutUint16(buf[0:2], r.Start)
	buf[2] = r.Length
	buf[3] = r.CRC
	return buf
}

// DecodeRecord parses a slot. It does not check the CRC.
func DecodeRecord(buf [core.RecordWidth]byte) Record {
	return Record{
		Start:  binary.LittleEndian.Uint16(buf[0:2]),
		Length: buf[2],
		CRC:    buf[3],
	}
}

func erased(buf [core.RecordWidth]byte) bool {
	for _, b := range buf {
		if b != core.ErasedByte {
			return false
		}
	}
	return true
}
