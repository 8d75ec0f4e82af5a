package sys

import "errors"

// ErrLocked is returned when another process holds the medium lock past the
// acquisition timeout.
var ErrLocked = errors.New("file is locked by another process")

// ErrPreallocNotSupported is returned when the underlying file or filesystem
// does not support preallocation. Callers treat it as informational.
var ErrPreallocNotSupported = errors.New("preallocation not supported")
