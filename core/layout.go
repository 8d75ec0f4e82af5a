package core

import "fmt"

// Reference sizing of the medium.
const (
	DefaultSlots       = 256
	RecordWidth        = 4 // start(2) | length(1) | crc8(1)
	CursorWidth        = 2 // 16 bit addressing
	CRCWidth           = 2 // trailing CRC-16 of every stored value
	MaxValueLength     = 254
	SentinelLength     = 0xFF // length byte of a slot that was never written
	ErasedByte         = 0xFF
	DefaultMediumSize  = 64 * 1024
	MaxAddressableSize = 64 * 1024
)

// Layout describes where the directory, the arena cursor and the value
// region live on the medium.
//
//	[0, DirectorySize)                  allocation directory
//	[CursorOffset, CursorOffset+2)      next free address (LE uint16)
//	[ValueStart, ValueEnd)              append-only value region
type Layout struct {
	Slots int
	Size  int64
}

// DefaultLayout returns the 256 slot, 64 KiB reference layout.
func DefaultLayout() Layout {
	return Layout{Slots: DefaultSlots, Size: DefaultMediumSize}
}

// NewLayout returns the reference directory over a medium of the given size.
func NewLayout(size int64) Layout {
	return Layout{Slots: DefaultSlots, Size: size}
}

func (l Layout) DirectorySize() int64 { return int64(l.Slots) * RecordWidth }

func (l Layout) CursorOffset() int64 { return l.DirectorySize() }

func (l Layout) ValueStart() int64 { return l.CursorOffset() + CursorWidth }

// ValueEnd is the exclusive upper bound of the value region. The cursor is
// persisted in 16 bits, so nothing at or past 0xFFFF is addressable.
func (l Layout) ValueEnd() int64 {
	if l.Size > 0xFFFF {
		return 0xFFFF
	}
	return l.Size
}

// SlotAddress returns the medium offset of the directory slot for id.
func (l Layout) SlotAddress(id AttributeID) int64 {
	return int64(SlotIndex(id)) * RecordWidth
}

// Validate reports whether the layout leaves room for at least one
// single-byte value.
func (l Layout) Validate() error {
	if l.Slots <= 0 || l.Slots > DefaultSlots {
		return fmt.Errorf("layout: slots must be in [1, %d], got %d", DefaultSlots, l.Slots)
	}
	if l.Size > MaxAddressableSize {
		return fmt.Errorf("layout: size %d exceeds 16-bit addressable space", l.Size)
	}
	if l.ValueEnd()-l.ValueStart() < 1+CRCWidth {
		return fmt.Errorf("layout: size %d leaves no room for values after %d byte header", l.Size, l.ValueStart())
	}
	return nil
}
