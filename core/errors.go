package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an attribute slot holds the sentinel length.
	ErrNotFound = errors.New("attribute not found")
	// ErrIntegrity is returned when a directory record, the arena cursor or a
	// stored value fails its CRC check and could not be corrected.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrLengthConflict is returned when an existing attribute is set with a
	// different length.
	ErrLengthConflict = errors.New("attribute length conflict")
	// ErrStorage is returned when the medium transfers fewer bytes than
	// requested, cannot be opened or initialized, or the arena is exhausted.
	ErrStorage = errors.New("storage failure")
	// ErrPolynomialInvalid is returned at construction when a generator
	// polynomial does not give every bit position a unique syndrome.
	ErrPolynomialInvalid = errors.New("invalid generator polynomial")
	// ErrInvalidLength is returned for a value length outside [1, MaxValueLength].
	ErrInvalidLength = errors.New("invalid attribute length")
	// ErrArenaFull is wrapped by a StorageError when an allocation would run
	// past the end of the value region.
	ErrArenaFull = errors.New("value region exhausted")
	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Regions reported by IntegrityError.
const (
	RegionDirectory = "directory"
	RegionCursor    = "cursor"
	RegionValue     = "value"
)

// IntegrityError describes a failed CRC check.
type IntegrityError struct {
	ID     AttributeID
	Region string
	Want   uint32
	Got    uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for attribute 0x%02X (%s): stored crc 0x%X, computed 0x%X", e.ID, e.Region, e.Want, e.Got)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// LengthConflictError reports an attempt to resize an existing attribute.
type LengthConflictError struct {
	ID        AttributeID
	Stored    int
	Requested int
}

func (e *LengthConflictError) Error() string {
	return fmt.Sprintf("attribute 0x%02X has length %d, cannot store %d bytes", e.ID, e.Stored, e.Requested)
}

func (e *LengthConflictError) Is(target error) bool { return target == ErrLengthConflict }

// StorageError reports a failed or short medium transfer.
type StorageError struct {
	Op     string // "read", "write", "allocate", "open", "erase"
	Offset int64
	Want   int
	Got    int
	Err    error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s at offset %d: %d of %d bytes: %v", e.Op, e.Offset, e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("storage %s at offset %d: %d of %d bytes", e.Op, e.Offset, e.Got, e.Want)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound checks if err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrity checks if err is, or wraps, an integrity failure.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsLengthConflict checks if err is, or wraps, a length conflict.
func IsLengthConflict(err error) bool {
	return errors.Is(err, ErrLengthConflict)
}

// IsStorage checks if err is, or wraps, a storage failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
