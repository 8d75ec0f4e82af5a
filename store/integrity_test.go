package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/internal/testutil"
	"github.com/INLOpen/nvattr/medium"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DirectoryIntegrity(t *testing.T) {
	ctx := context.Background()
	for _, ecc := range []bool{false, true} {
		for offset := int64(0); offset < core.RecordWidth; offset++ {
			for _, mask := range []byte{0x01, 0x80, 0x5A, 0xFF} {
				s, mem := newTestStore(t, 4096, ecc)
				require.NoError(t, s.Set(ctx, 0x20, []byte("value")))

				testutil.XorByte(t, mem, 0x20*core.RecordWidth+offset, mask)
				_, _, err := s.Get(ctx, 0x20)
				require.ErrorIs(t, err, core.ErrIntegrity, "ecc=%v byte %d mask 0x%02X", ecc, offset, mask)

				var integrity *core.IntegrityError
				require.ErrorAs(t, err, &integrity)
				assert.Equal(t, core.RegionDirectory, integrity.Region)
				assert.Equal(t, core.AttributeID(0x20), integrity.ID)
			}
		}
	}
}

func TestStore_ValueIntegrityWithoutCorrection(t *testing.T) {
	ctx := context.Background()
	value := []byte("firmware=1.2.3")
	span := int64(len(value) + core.CRCWidth)

	for offset := int64(0); offset < span; offset++ {
		for _, mask := range []byte{0x01, 0x10, 0xC3} {
			s, mem := newTestStore(t, 4096, false)
			require.NoError(t, s.Set(ctx, 3, value))

			testutil.XorByte(t, mem, 1026+offset, mask)
			_, _, err := s.Get(ctx, 3)
			require.ErrorIs(t, err, core.ErrIntegrity, "byte %d mask 0x%02X", offset, mask)

			var integrity *core.IntegrityError
			require.ErrorAs(t, err, &integrity)
			assert.Equal(t, core.RegionValue, integrity.Region)
			assert.Equal(t, int64(1), s.Metrics().IntegrityErrorsTotal.Value())
		}
	}
}

func TestStore_SingleBitCorrection(t *testing.T) {
	ctx := context.Background()
	value := []byte{0xB4, 0x00, 0xFF, 0x5A, 0x11}
	span := len(value) + core.CRCWidth

	for offset := 0; offset < span; offset++ {
		for bit := uint(0); bit < 8; bit++ {
			s, mem := newTestStore(t, 4096, true)
			require.NoError(t, s.Set(ctx, 0x30, value))
			testutil.FlipBit(t, mem, int64(1026+offset), bit)
			damaged := testutil.ReadBytes(t, mem, 1026, span)

			length, got, err := s.Get(ctx, 0x30)
			require.NoError(t, err, "byte %d bit %d", offset, bit)
			assert.Equal(t, uint8(len(value)), length)
			assert.Equal(t, value, got)
			assert.Equal(t, int64(1), s.Metrics().CorrectionsTotal.Value())
			assert.Equal(t, damaged, testutil.ReadBytes(t, mem, 1026, span), "correction is not written back")
		}
	}
}

func TestStore_CorrectionDisabledReportsFlip(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, 4096, false)
	require.NoError(t, s.Set(ctx, 1, []byte{0x10}))
	testutil.FlipBit(t, mem, 1026, 3)

	_, _, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, core.ErrIntegrity)
	assert.Equal(t, int64(0), s.Metrics().CorrectionsTotal.Value())
}

func TestStore_OutOfRangeRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 4096, false)

	// A well-formed record pointing past the end of the value region.
	require.NoError(t, s.dir.Store(7, recordAt(4090, 10)))
	_, _, err := s.Get(ctx, 7)
	var integrity *core.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, core.RegionDirectory, integrity.Region)

	// And one pointing into the header.
	require.NoError(t, s.dir.Store(8, recordAt(1000, 4)))
	_, _, err = s.Get(ctx, 8)
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func TestStore_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("clean", func(t *testing.T) {
		s, _ := newTestStore(t, 4096, true)
		require.NoError(t, s.Set(ctx, 1, []byte("a")))
		require.NoError(t, s.Set(ctx, 2, []byte("bc")))

		report, err := s.Verify(ctx)
		require.NoError(t, err)
		assert.True(t, report.Healthy())
		assert.Equal(t, 2, report.Written)
		assert.Equal(t, core.DefaultSlots-2, report.Unused)
		assert.Equal(t, uint16(1026+3+4), report.Cursor)
	})

	t.Run("damage", func(t *testing.T) {
		s, mem := newTestStore(t, 4096, true)
		require.NoError(t, s.Set(ctx, 1, []byte("one")))  // 1026..1031
		require.NoError(t, s.Set(ctx, 2, []byte("two")))  // 1031..1036
		require.NoError(t, s.Set(ctx, 3, []byte("tri")))  // 1036..1041
		require.NoError(t, s.Set(ctx, 4, []byte("four"))) // 1041..1047

		testutil.FlipBit(t, mem, 1026, 0)
		testutil.XorByte(t, mem, 1031, 0xFF)
		testutil.XorByte(t, mem, 3*core.RecordWidth, 0x01)

		report, err := s.Verify(ctx)
		require.NoError(t, err)
		assert.False(t, report.Healthy())
		assert.Contains(t, report.Correctable, core.AttributeID(1))
		assert.Equal(t, []core.AttributeID{3}, report.CorruptRecords)
		assert.Equal(t, 3, report.Written)
		// Eight flipped bits are beyond the code; they either fail the
		// check or alias some single-bit syndrome.
		if len(report.CorruptValues) == 1 {
			assert.Equal(t, core.AttributeID(2), report.CorruptValues[0])
		} else {
			assert.Contains(t, report.Correctable, core.AttributeID(2))
		}
		assert.NotContains(t, report.Correctable, core.AttributeID(4))
	})

	t.Run("lost cursor write", func(t *testing.T) {
		s, mem := newTestStore(t, 4096, false)
		require.NoError(t, s.Set(ctx, 1, bytes.Repeat([]byte{1}, 10)))
		_, err := mem.WriteAt([]byte{0x02, 0x04}, 1024)
		require.NoError(t, err)

		report, err := s.Verify(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.AttributeID{1}, report.BeyondCursor)
	})

	t.Run("damaged cursor", func(t *testing.T) {
		s, mem := newTestStore(t, 4096, false)
		_, err := mem.WriteAt([]byte{0xFF, 0xFF}, 1024)
		require.NoError(t, err)

		report, err := s.Verify(ctx)
		require.NoError(t, err)
		assert.True(t, report.CursorDamaged)
		assert.False(t, report.Healthy())
	})
}

func TestStore_AttributesSkipsCorruptSlots(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, 4096, false)
	for _, id := range []core.AttributeID{1, 7, 200} {
		require.NoError(t, s.Set(ctx, id, []byte{byte(id)}))
	}
	testutil.XorByte(t, mem, 7*core.RecordWidth+2, 0x04)

	ids, err := s.Attributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 200}, ids.ToArray())
}

func TestStore_SetOverwritesCorruptSlot(t *testing.T) {
	ctx := context.Background()
	for _, ecc := range []bool{false, true} {
		s, mem := newTestStore(t, 4096, ecc)
		require.NoError(t, s.Set(ctx, 0x20, []byte("value")))
		testutil.XorByte(t, mem, 0x20*core.RecordWidth+3, 0x01)

		_, _, err := s.Get(ctx, 0x20)
		require.ErrorIs(t, err, core.ErrIntegrity)

		require.NoError(t, s.Set(ctx, 0x20, []byte("fresh!")), "ecc=%v", ecc)
		length, got, err := s.Get(ctx, 0x20)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), length)
		assert.Equal(t, []byte("fresh!"), got)
	}
}

func TestStore_SetSurfacesDirectoryReadFailure(t *testing.T) {
	ctx := context.Background()
	mem := testutil.NewFaultyMedium(medium.NewMemory(4096, core.ErasedByte))
	s, err := Format(ctx, Options{Medium: mem})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	mem.FailReads(testutil.Fault{})
	err = s.Set(ctx, 0x20, []byte("value"))
	assert.ErrorIs(t, err, core.ErrStorage)
}
