package medium

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/sys"
	"github.com/shirou/gopsutil/v3/disk"
)

var _ Medium = (*File)(nil)

// FileOptions configures OpenFile.
type FileOptions struct {
	// LockTimeout bounds the wait for the advisory lock held by another process.
	LockTimeout time.Duration
	// Preallocate reserves the image's blocks up front.
	Preallocate bool
	Logger      *slog.Logger
}

// File is a Medium backed by an image file. The file is locked for the
// lifetime of the File so that only one process writes to it.
type File struct {
	f       sys.FileHandle
	size    int64
	release func() error
	created bool
	closed  bool
	logger  *slog.Logger
}

// OpenFile opens the image at path, creating it with size bytes if it does
// not exist. Created reports whether the caller must lay the medium out.
func OpenFile(path string, size int64, opts FileOptions) (*File, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "FileMedium", "path", path)

	exists, err := sys.Exists(path)
	if err != nil {
		return nil, &core.StorageError{Op: "open", Err: err}
	}
	if !exists {
		if err := checkFreeSpace(filepath.Dir(path), size); err != nil {
			return nil, &core.StorageError{Op: "open", Want: int(size), Err: err}
		}
	}

	f, err := sys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &core.StorageError{Op: "open", Err: err}
	}
	release, err := sys.LockFile(f, opts.LockTimeout)
	if err != nil {
		f.Close()
		return nil, &core.StorageError{Op: "open", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		release()
		f.Close()
		return nil, &core.StorageError{Op: "open", Err: err}
	}

	m := &File{f: f, size: size, release: release, logger: logger}
	switch {
	case info.Size() == 0:
		m.created = true
		if opts.Preallocate {
			if err := sys.Preallocate(f, size); err != nil && !errors.Is(err, sys.ErrPreallocNotSupported) {
				logger.Warn("Preallocation failed, continuing without it", "error", err)
			}
		}
		if err := f.Truncate(size); err != nil {
			m.Close()
			return nil, &core.StorageError{Op: "open", Want: int(size), Err: err}
		}
		logger.Info("Created medium image", "size", size)
	case info.Size() != size:
		m.Close()
		return nil, &core.StorageError{Op: "open", Want: int(size), Got: int(info.Size()),
			Err: fmt.Errorf("image %s is %d bytes, configured size is %d", path, info.Size(), size)}
	}
	return m, nil
}

func checkFreeSpace(dir string, size int64) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		// Not every filesystem reports usage; the write path catches real shortfalls.
		return nil
	}
	if usage.Free < uint64(size) {
		return fmt.Errorf("only %d bytes free in %s, need %d", usage.Free, dir, size)
	}
	return nil
}

// Created reports whether OpenFile created a fresh, unformatted image.
func (m *File) Created() bool { return m.created }

func (m *File) Size() int64 { return m.size }

func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrOutOfRange
	}
	if off >= m.size {
		return 0, io.EOF
	}
	want := p
	if off+int64(len(p)) > m.size {
		want = p[:m.size-off]
	}
	n, err := m.f.ReadAt(want, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// WriteAt never grows the image: the part of p past the end is dropped and
// the write reported short.
func (m *File) WriteAt(p []byte, off int64) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 || off > m.size {
		return 0, ErrOutOfRange
	}
	want := p
	if off+int64(len(p)) > m.size {
		want = p[:m.size-off]
	}
	n, err := m.f.WriteAt(want, off)
	if err == nil && n < len(p) {
		err = ErrOutOfRange
	}
	return n, err
}

func (m *File) Erase(fill byte) error {
	if m.closed {
		return ErrClosed
	}
	chunk := make([]byte, 4096)
	for i := range chunk {
		chunk[i] = fill
	}
	for off := int64(0); off < m.size; off += int64(len(chunk)) {
		part := chunk
		if rest := m.size - off; rest < int64(len(part)) {
			part = part[:rest]
		}
		if _, err := m.f.WriteAt(part, off); err != nil {
			return fmt.Errorf("erase at offset %d: %w", off, err)
		}
	}
	return m.f.Sync()
}

func (m *File) Sync() error {
	if m.closed {
		return ErrClosed
	}
	return m.f.Sync()
}

func (m *File) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	if m.release != nil {
		errs = append(errs, m.release())
	}
	errs = append(errs, m.f.Close())
	return errors.Join(errs...)
}
