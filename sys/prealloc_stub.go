//go:build !linux

package sys

// Preallocate returns ErrPreallocNotSupported outside Linux.
func Preallocate(f FileHandle, size int64) error {
	return ErrPreallocNotSupported
}
