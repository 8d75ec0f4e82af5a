package directory

import (
	"testing"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/medium"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormatted(t *testing.T) (*Directory, *medium.Memory) {
	t.Helper()
	m := medium.NewMemory(core.DefaultMediumSize, 0x00)
	d := New(m, core.DefaultLayout())
	require.NoError(t, d.Format())
	return d, m
}

func TestRecord_EncodeDecode(t *testing.T) {
	rec := NewRecord(0x0402, 7)
	assert.True(t, rec.Valid())
	assert.False(t, rec.Unused())

	buf := rec.Encode()
	assert.Equal(t, byte(0x02), buf[0], "start is little endian")
	assert.Equal(t, byte(0x04), buf[1])
	assert.Equal(t, byte(7), buf[2])
	assert.Equal(t, rec, DecodeRecord(buf))
}

func TestRecord_CRCCoversStartAndLength(t *testing.T) {
	rec := NewRecord(1026, 1)
	moved := rec
	moved.Start++
	assert.False(t, moved.Valid())
	resized := rec
	resized.Length++
	assert.False(t, resized.Valid())
}

func TestDirectory_FormattedSlotsAreUnused(t *testing.T) {
	d, _ := newFormatted(t)
	for _, id := range []core.AttributeID{0, 0x10, 0x11, 255} {
		rec, err := d.Lookup(id)
		require.NoError(t, err)
		assert.True(t, rec.Unused(), "slot %d", id)
	}
}

func TestDirectory_StoreAndLookup(t *testing.T) {
	d, m := newFormatted(t)

	require.NoError(t, d.Store(84, Record{Start: 2000, Length: 12}))
	rec, err := d.Lookup(84)
	require.NoError(t, err)
	assert.Equal(t, uint16(2000), rec.Start)
	assert.Equal(t, uint8(12), rec.Length)
	assert.True(t, rec.Valid())

	// Slot 84 lives at 84*4 = 336.
	image := m.Bytes()
	assert.Equal(t, rec.Encode(), [4]byte(image[336:340]))

	neighbour, err := d.Lookup(85)
	require.NoError(t, err)
	assert.True(t, neighbour.Unused())
}

func TestDirectory_CorruptedSlotFailsIntegrity(t *testing.T) {
	for offset := int64(0); offset < core.RecordWidth; offset++ {
		d, m := newFormatted(t)
		require.NoError(t, d.Store(0x10, Record{Start: 1026, Length: 1}))

		addr := d.SlotAddress(0x10) + offset
		b := make([]byte, 1)
		_, err := m.ReadAt(b, addr)
		require.NoError(t, err)
		b[0] ^= 0x5A
		_, err = m.WriteAt(b, addr)
		require.NoError(t, err)

		_, err = d.Lookup(0x10)
		require.Error(t, err, "byte %d", offset)
		assert.True(t, core.IsIntegrity(err))
	}
}

func TestDirectory_ShortReadIsStorageError(t *testing.T) {
	m := medium.NewMemory(2, 0xFF)
	d := New(m, core.DefaultLayout())
	_, err := d.Lookup(0)
	require.Error(t, err)
	assert.True(t, core.IsStorage(err))
}
