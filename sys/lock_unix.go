//go:build unix

package sys

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// LockFile takes an advisory exclusive flock on f, retrying until timeout
// elapses. The returned release function drops the lock but leaves f open.
func LockFile(f FileHandle, timeout time.Duration) (func() error, error) {
	fd := int(f.Fd())
	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return func() error {
				return unix.Flock(fd, unix.LOCK_UN)
			}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			return nil, fmt.Errorf("flock %s: %w", f.Name(), err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, f.Name())
		}
		time.Sleep(25 * time.Millisecond)
	}
}
