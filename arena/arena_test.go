package arena

import (
	"testing"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/medium"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReset(t *testing.T, size int64) (*Allocator, core.Layout) {
	t.Helper()
	layout := core.NewLayout(size)
	a := New(medium.NewMemory(size, 0xFF), layout)
	require.NoError(t, a.Reset())
	return a, layout
}

func TestAllocator_SequentialAllocations(t *testing.T) {
	a, layout := newReset(t, core.DefaultMediumSize)

	cursor, err := a.Cursor()
	require.NoError(t, err)
	assert.Equal(t, uint16(layout.ValueStart()), cursor)

	start, err := a.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1026), start)

	start, err = a.Allocate(10)
	require.NoError(t, err)
	assert.Equal(t, uint16(1026+1+2), start)

	cursor, err = a.Cursor()
	require.NoError(t, err)
	assert.Equal(t, uint16(1026+3+12), cursor)
}

func TestAllocator_Monotonic(t *testing.T) {
	a, layout := newReset(t, core.DefaultMediumSize)
	prev := uint16(layout.ValueStart())
	for i := 1; i <= 100; i++ {
		_, err := a.Allocate(i % 254)
		require.NoError(t, err)
		cursor, err := a.Cursor()
		require.NoError(t, err)
		require.GreaterOrEqual(t, cursor, prev)
		require.GreaterOrEqual(t, int64(cursor), layout.ValueStart())
		prev = cursor
	}
}

func TestAllocator_ExhaustionLeavesCursor(t *testing.T) {
	a, layout := newReset(t, 1100)
	free := layout.ValueEnd() - layout.ValueStart()
	assert.Equal(t, int64(74), free)

	_, err := a.Allocate(70)
	require.NoError(t, err)
	before, err := a.Cursor()
	require.NoError(t, err)

	_, err = a.Allocate(3)
	require.Error(t, err)
	assert.True(t, core.IsStorage(err))
	assert.ErrorIs(t, err, core.ErrArenaFull)

	after, err := a.Cursor()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = a.Allocate(0)
	require.NoError(t, err, "exactly the CRC still fits")
	remaining, err := a.Remaining()
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestAllocator_FullReferenceMedium(t *testing.T) {
	a, _ := newReset(t, core.DefaultMediumSize)
	count := 0
	for {
		if _, err := a.Allocate(254); err != nil {
			assert.ErrorIs(t, err, core.ErrArenaFull)
			break
		}
		count++
	}
	// (0xFFFF - 1026) / 256 full-size values fit.
	assert.Equal(t, (0xFFFF-1026)/256, count)
}

func TestAllocator_DamagedCursor(t *testing.T) {
	m := medium.NewMemory(core.DefaultMediumSize, 0x00)
	a := New(m, core.DefaultLayout())
	_, err := a.Cursor()
	require.Error(t, err)
	assert.True(t, core.IsIntegrity(err))
}
