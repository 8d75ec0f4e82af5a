package core

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	integrity := fmt.Errorf("get: %w", &IntegrityError{ID: 0x10, Region: RegionValue, Want: 1, Got: 2})
	assert.True(t, IsIntegrity(integrity))
	assert.False(t, IsNotFound(integrity))

	var ie *IntegrityError
	assert.True(t, errors.As(integrity, &ie))
	assert.Equal(t, RegionValue, ie.Region)

	conflict := &LengthConflictError{ID: 1, Stored: 4, Requested: 2}
	assert.True(t, IsLengthConflict(conflict))
	assert.Contains(t, conflict.Error(), "length 4")

	storage := &StorageError{Op: "write", Offset: 10, Want: 4, Got: 1, Err: io.ErrShortWrite}
	assert.True(t, IsStorage(storage))
	assert.ErrorIs(t, storage, io.ErrShortWrite)

	full := &StorageError{Op: "allocate", Err: ErrArenaFull}
	assert.True(t, IsStorage(full))
	assert.ErrorIs(t, full, ErrArenaFull)

	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrNotFound)))
}

func TestCompressionType_StringRoundTrip(t *testing.T) {
	for _, ct := range []CompressionType{CompressionNone, CompressionSnappy, CompressionLZ4, CompressionZSTD} {
		parsed, ok := ParseCompressionType(ct.String())
		assert.True(t, ok)
		assert.Equal(t, ct, parsed)
	}
	_, ok := ParseCompressionType("brotli")
	assert.False(t, ok)
	assert.Equal(t, "unknown", CompressionType(99).String())
}
