package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/INLOpen/nvattr/checksum"
	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/directory"
	"github.com/INLOpen/nvattr/hooks"
	"github.com/INLOpen/nvattr/metrics"
	"go.opentelemetry.io/otel/attribute"
)

// Set stores value under id.
//
// An id keeps the length of its first value for life: a later Set with a
// different length fails with a LengthConflictError and the old value stays
// readable. A Set with the same length writes a fresh copy to new arena
// space and repoints the slot; the old bytes are never reclaimed.
//
// The value and its CRC are written before the slot. A failure after the
// cursor was advanced leaks that space; a failure between the value and the
// slot write leaves the old value in place.
func (s *AttributeStore) Set(ctx context.Context, id core.AttributeID, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "AttributeStore.Set")
	start := time.Now()
	defer func() {
		s.observe(metrics.OpSet, start)
		span.End()
	}()
	span.SetAttributes(attribute.Int("nvattr.id", int(id)), attribute.Int("nvattr.length", len(value)))

	if len(value) < 1 || len(value) > core.MaxValueLength {
		return s.fail(span, fmt.Errorf("%w: %d bytes, want 1..%d", core.ErrInvalidLength, len(value), core.MaxValueLength))
	}
	if err := s.lock(); err != nil {
		return s.fail(span, err)
	}
	defer s.mu.Unlock()

	// Listeners may rewrite the bytes but never the caller's slice.
	buf := make([]byte, len(value), len(value)+core.CRCWidth)
	copy(buf, value)
	if err := s.hooks.Trigger(ctx, hooks.NewPreSetAttributeEvent(hooks.PreSetAttributePayload{ID: id, Value: buf})); err != nil {
		return s.fail(span, err)
	}

	rec, err := s.set(id, buf)
	if err != nil {
		return s.classify(ctx, span, id, err)
	}

	s.metrics.SetsTotal.Add(1)
	s.metrics.BytesWrittenTotal.Add(int64(len(buf) + core.CRCWidth + core.RecordWidth))
	s.logger.Debug("Attribute set", "id", id, "length", len(buf), "start", rec.start, "replaced", rec.replaced)
	_ = s.hooks.Trigger(ctx, hooks.NewPostSetAttributeEvent(hooks.PostSetAttributePayload{ID: id, Start: rec.start, Length: len(buf), Replaced: rec.replaced}))
	return nil
}

// SetAttribute stores the first length bytes of value under id.
func (s *AttributeStore) SetAttribute(ctx context.Context, id core.AttributeID, length uint8, value []byte) error {
	if int(length) > len(value) {
		return fmt.Errorf("%w: length %d exceeds the %d bytes supplied", core.ErrInvalidLength, length, len(value))
	}
	return s.Set(ctx, id, value[:length])
}

type setResult struct {
	start    uint16
	replaced bool
}

// set runs the write path under the store lock. buf must have spare
// capacity for the CRC.
func (s *AttributeStore) set(id core.AttributeID, buf []byte) (setResult, error) {
	existing, err := s.dir.Lookup(id)
	switch {
	case core.IsIntegrity(err):
		// A corrupt slot is overwritten as if it were unused.
		s.logger.Warn("Overwriting corrupt directory record", "id", id, "error", err)
		existing = directory.UnusedRecord
	case err != nil:
		return setResult{}, err
	}
	replaced := !existing.Unused()
	if replaced && int(existing.Length) != len(buf) {
		return setResult{}, &core.LengthConflictError{ID: id, Stored: int(existing.Length), Requested: len(buf)}
	}

	start, err := s.arena.Allocate(len(buf))
	if err != nil {
		return setResult{}, err
	}

	crc := checksum.Checksum16(buf, s.crcTable)
	payload := binary.BigEndian.AppendUint16(buf, crc)
	n, err := s.m.WriteAt(payload, int64(start))
	if n != len(payload) {
		return setResult{}, &core.StorageError{Op: "write", Offset: int64(start), Want: len(payload), Got: n, Err: err}
	}

	if err := s.dir.Store(id, directory.NewRecord(start, uint8(len(buf)))); err != nil {
		return setResult{}, err
	}
	return setResult{start: start, replaced: replaced}, nil
}
