package medium

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ReadWrite(t *testing.T) {
	m := NewMemory(16, 0xFF)
	assert.Equal(t, int64(16), m.Size())

	n, err := m.WriteAt([]byte{1, 2, 3}, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 5)
	n, err = m.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{0xFF, 1, 2, 3, 0xFF}, buf)
}

func TestMemory_ShortTransfers(t *testing.T) {
	m := NewMemory(8, 0x00)

	n, err := m.WriteAt([]byte{1, 2, 3, 4}, 6)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, ErrOutOfRange)

	buf := make([]byte, 4)
	n, err = m.ReadAt(buf, 6)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte{1, 2}, buf[:n])

	n, err = m.ReadAt(buf, 8)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = m.WriteAt(buf, -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestMemory_EraseAndClose(t *testing.T) {
	m := NewMemory(4, 0x00)
	require.NoError(t, m.Erase(0xFF))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, m.Bytes())

	require.NoError(t, m.Close())
	_, err := m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.WriteAt([]byte{0}, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestImageHelpers(t *testing.T) {
	m := NewMemory(8, 0xAA)
	image, err := ReadImage(m)
	require.NoError(t, err)
	assert.Len(t, image, 8)

	image[0] = 0x01
	require.NoError(t, WriteImage(m, image))
	assert.Equal(t, byte(0x01), m.Bytes()[0])

	assert.ErrorIs(t, WriteImage(m, make([]byte, 4)), ErrOutOfRange)
}
