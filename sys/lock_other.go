//go:build !unix

package sys

import "time"

// LockFile is a no-op where flock is unavailable; single-writer access is
// then enforced only within the process.
func LockFile(f FileHandle, timeout time.Duration) (func() error, error) {
	return func() error { return nil }, nil
}
