//go:build unix

package sys

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flock locks belong to the open file description, so a second open of the
// same path contends even within one process.
func TestLockFile_Contended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contended.bin")
	first, err := OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)
	defer first.Close()
	second, err := OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer second.Close()

	release, err := LockFile(first, time.Second)
	require.NoError(t, err)

	_, err = LockFile(second, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release())
	release2, err := LockFile(second, time.Second)
	require.NoError(t, err)
	require.NoError(t, release2())
}
