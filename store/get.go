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

// Get returns the length and a copy of the value stored under id.
//
// With error correction enabled a value whose CRC fails because of one
// flipped bit is returned repaired. The medium is not rewritten.
func (s *AttributeStore) Get(ctx context.Context, id core.AttributeID) (uint8, []byte, error) {
	ctx, span := s.tracer.Start(ctx, "AttributeStore.Get")
	start := time.Now()
	defer func() {
		s.observe(metrics.OpGet, start)
		span.End()
	}()
	span.SetAttributes(attribute.Int("nvattr.id", int(id)))

	if err := s.lock(); err != nil {
		return 0, nil, s.fail(span, err)
	}
	defer s.mu.Unlock()

	s.metrics.GetsTotal.Add(1)
	v, err := s.get(id)
	if err == nil && v.corrected > 0 {
		s.reportCorrection(ctx, id, v)
		span.SetAttributes(attribute.Int("nvattr.corrected_bit", v.corrected))
	}
	_ = s.hooks.Trigger(ctx, hooks.NewPostGetAttributeEvent(hooks.PostGetAttributePayload{ID: id, Length: len(v.data), Error: err}))
	if err != nil {
		return 0, nil, s.classify(ctx, span, id, err)
	}
	span.SetAttributes(attribute.Int("nvattr.length", len(v.data)))
	return uint8(len(v.data)), v.data, nil
}

// GetInto copies the value stored under id into out and returns its length.
// out must be large enough for the stored length.
func (s *AttributeStore) GetInto(ctx context.Context, id core.AttributeID, out []byte) (int, error) {
	length, value, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(out) < int(length) {
		return 0, fmt.Errorf("%w: buffer of %d bytes for a %d byte value", core.ErrInvalidLength, len(out), length)
	}
	return copy(out, value), nil
}

type readValue struct {
	rec  directory.Record
	data []byte
	// corrected is the repaired bit, counted from the end of value+CRC, or 0.
	corrected int
}

// get runs the read path under the store lock.
func (s *AttributeStore) get(id core.AttributeID) (readValue, error) {
	rec, err := s.dir.Lookup(id)
	if err != nil {
		return readValue{}, err
	}
	if rec.Unused() {
		return readValue{}, core.ErrNotFound
	}
	if err := s.checkBounds(id, rec); err != nil {
		return readValue{}, err
	}

	length := int(rec.Length)
	payload := make([]byte, length+core.CRCWidth)
	n, err := s.m.ReadAt(payload, int64(rec.Start))
	if n != len(payload) {
		return readValue{}, &core.StorageError{Op: "read", Offset: int64(rec.Start), Want: len(payload), Got: n, Err: err}
	}

	pos, err := s.checkValue(id, payload)
	if err != nil {
		return readValue{rec: rec}, err
	}
	return readValue{rec: rec, data: payload[:length:length], corrected: pos}, nil
}

// checkBounds rejects a record whose CRC matched but whose extent cannot
// lie in the value region.
func (s *AttributeStore) checkBounds(id core.AttributeID, rec directory.Record) error {
	end := int64(rec.Start) + int64(rec.Length) + core.CRCWidth
	if rec.Length == 0 || int(rec.Length) > core.MaxValueLength ||
		int64(rec.Start) < s.layout.ValueStart() || end > s.layout.ValueEnd() {
		return &core.IntegrityError{ID: id, Region: core.RegionDirectory, Want: uint32(s.layout.ValueEnd()), Got: uint32(end)}
	}
	return nil
}

// checkValue verifies value+CRC in payload, repairing one bit in place when
// error correction is enabled. It returns the repaired position or 0.
func (s *AttributeStore) checkValue(id core.AttributeID, payload []byte) (int, error) {
	length := len(payload) - core.CRCWidth
	stored := binary.BigEndian.Uint16(payload[length:])
	computed := checksum.Checksum16(payload[:length], s.crcTable)
	if stored == computed {
		return 0, nil
	}
	mismatch := &core.IntegrityError{ID: id, Region: core.RegionValue, Want: uint32(stored), Got: uint32(computed)}
	if s.code == nil {
		return 0, mismatch
	}

	repaired := append([]byte(nil), payload...)
	pos, err := s.code.CorrectBytes(repaired)
	if err != nil || pos == 0 {
		return 0, mismatch
	}
	if binary.BigEndian.Uint16(repaired[length:]) != checksum.Checksum16(repaired[:length], s.crcTable) {
		return 0, mismatch
	}
	copy(payload, repaired)
	return pos, nil
}

func (s *AttributeStore) reportCorrection(ctx context.Context, id core.AttributeID, v readValue) {
	s.metrics.CorrectionsTotal.Add(1)
	s.logger.Warn("Corrected single-bit error in stored value", "id", id, "bit", v.corrected, "start", v.rec.Start)
	_ = s.hooks.Trigger(ctx, hooks.NewOnValueCorrectedEvent(hooks.ValueCorrectedPayload{ID: id, Bit: v.corrected, Start: v.rec.Start}))
}
