package sys

import (
	"io"
	"os"
)

// FileHandle is the subset of *os.File the medium needs. It exists so tests
// can substitute files that fail or short-transfer on demand.
type FileHandle interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.WriterAt

	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	Name() string
	Fd() uintptr
}

type OpenFileHandler func(name string, flag int, perm os.FileMode) (FileHandle, error)

// OpenFile opens a file through the package-level handler so callers and
// tests share one seam.
var OpenFile OpenFileHandler = func(name string, flag int, perm os.FileMode) (FileHandle, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &RealFile{f: f}, nil
}

// Exists reports whether path names an existing file.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
