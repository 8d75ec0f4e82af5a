package medium

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/INLOpen/nvattr/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFile_CreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvm.bin")
	opts := FileOptions{LockTimeout: time.Second, Preallocate: true}

	m, err := OpenFile(path, 4096, opts)
	require.NoError(t, err)
	assert.True(t, m.Created())
	assert.Equal(t, int64(4096), m.Size())

	require.NoError(t, m.Erase(0xFF))
	n, err := m.WriteAt([]byte{0xAB, 0xCD}, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, m.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())

	m, err = OpenFile(path, 4096, opts)
	require.NoError(t, err)
	defer m.Close()
	assert.False(t, m.Created())

	buf := make([]byte, 3)
	_, err = m.ReadAt(buf, 99)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xAB, 0xCD}, buf)
}

func TestOpenFile_SizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvm.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

	_, err := OpenFile(path, 4096, FileOptions{LockTimeout: time.Second})
	require.Error(t, err)
	assert.True(t, core.IsStorage(err))
}

func TestFile_DoesNotGrowPastSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvm.bin")
	m, err := OpenFile(path, 64, FileOptions{LockTimeout: time.Second})
	require.NoError(t, err)
	defer m.Close()

	n, err := m.WriteAt([]byte{1, 2, 3, 4}, 62)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, ErrOutOfRange)

	buf := make([]byte, 4)
	n, err = m.ReadAt(buf, 62)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64), info.Size())
}

func TestFile_ClosedTransfers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvm.bin")
	m, err := OpenFile(path, 64, FileOptions{LockTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "second close is a no-op")

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}
