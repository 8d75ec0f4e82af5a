package store

import (
	"context"
	"errors"
	"time"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/metrics"
	"github.com/RoaringBitmap/roaring"
	"go.opentelemetry.io/otel/attribute"
)

// Attributes returns the ids whose slot holds a valid record. Slots that
// fail their CRC are left out; Verify lists them.
func (s *AttributeStore) Attributes(ctx context.Context) (*roaring.Bitmap, error) {
	_, span := s.tracer.Start(ctx, "AttributeStore.Attributes")
	defer span.End()

	if err := s.lock(); err != nil {
		return nil, s.fail(span, err)
	}
	defer s.mu.Unlock()

	ids, err := s.attributes()
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int64("nvattr.count", int64(ids.GetCardinality())))
	return ids, nil
}

func (s *AttributeStore) attributes() (*roaring.Bitmap, error) {
	ids := roaring.New()
	for slot := 0; slot < s.layout.Slots; slot++ {
		id := core.AttributeID(slot)
		rec, err := s.dir.Lookup(id)
		if errors.Is(err, core.ErrIntegrity) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !rec.Unused() {
			ids.Add(uint32(id))
		}
	}
	return ids, nil
}

// Report is the outcome of a full scan of the medium.
type Report struct {
	Written int
	Unused  int
	Cursor  uint16
	// CursorDamaged is set when the persisted cursor lies outside the value region.
	CursorDamaged bool
	// CorruptRecords lists ids whose directory record fails its CRC or
	// points outside the value region.
	CorruptRecords []core.AttributeID
	// CorruptValues lists ids whose value fails its CRC and cannot be repaired.
	CorruptValues []core.AttributeID
	// Correctable lists ids whose value is repaired on read.
	Correctable []core.AttributeID
	// BeyondCursor lists ids whose value ends past the cursor, which means
	// the cursor write was lost.
	BeyondCursor []core.AttributeID
}

// Healthy reports whether every record and value verified without repair.
func (r Report) Healthy() bool {
	return !r.CursorDamaged && len(r.CorruptRecords) == 0 && len(r.CorruptValues) == 0 &&
		len(r.Correctable) == 0 && len(r.BeyondCursor) == 0
}

// Verify reads every slot and every value. Damage is reported, not
// returned; the error is reserved for failed transfers.
func (s *AttributeStore) Verify(ctx context.Context) (Report, error) {
	_, span := s.tracer.Start(ctx, "AttributeStore.Verify")
	start := time.Now()
	defer func() {
		s.observe(metrics.OpVerify, start)
		span.End()
	}()

	if err := s.lock(); err != nil {
		return Report{}, s.fail(span, err)
	}
	defer s.mu.Unlock()

	var report Report
	cursor, err := s.arena.Cursor()
	switch {
	case errors.Is(err, core.ErrIntegrity):
		report.CursorDamaged = true
	case err != nil:
		return report, s.fail(span, err)
	default:
		report.Cursor = cursor
	}

	for slot := 0; slot < s.layout.Slots; slot++ {
		id := core.AttributeID(slot)
		v, err := s.get(id)
		switch {
		case err == nil:
			report.Written++
			if v.corrected > 0 {
				report.Correctable = append(report.Correctable, id)
			}
			end := int64(v.rec.Start) + int64(v.rec.Length) + core.CRCWidth
			if !report.CursorDamaged && end > int64(report.Cursor) {
				report.BeyondCursor = append(report.BeyondCursor, id)
			}
		case errors.Is(err, core.ErrNotFound):
			report.Unused++
		case errors.Is(err, core.ErrIntegrity):
			var integrity *core.IntegrityError
			if errors.As(err, &integrity) && integrity.Region == core.RegionValue {
				report.Written++
				report.CorruptValues = append(report.CorruptValues, id)
			} else {
				report.CorruptRecords = append(report.CorruptRecords, id)
			}
		default:
			return report, s.fail(span, err)
		}
	}

	span.SetAttributes(
		attribute.Int("nvattr.written", report.Written),
		attribute.Bool("nvattr.healthy", report.Healthy()),
	)
	if !report.Healthy() {
		s.logger.Warn("Verification found damage",
			"corrupt_records", len(report.CorruptRecords),
			"corrupt_values", len(report.CorruptValues),
			"correctable", len(report.Correctable),
			"cursor_damaged", report.CursorDamaged)
	}
	return report, nil
}

// Stats summarizes space usage.
type Stats struct {
	Size            int64
	ValueStart      int64
	ValueEnd        int64
	Cursor          uint16
	BytesUsed       int64
	BytesFree       int64
	Attributes      int
	ErrorCorrection bool
	CRC16Polynomial uint16
}

// Stats reads the cursor and counts written slots.
func (s *AttributeStore) Stats(ctx context.Context) (Stats, error) {
	_, span := s.tracer.Start(ctx, "AttributeStore.Stats")
	defer span.End()

	if err := s.lock(); err != nil {
		return Stats{}, s.fail(span, err)
	}
	defer s.mu.Unlock()

	cursor, err := s.arena.Cursor()
	if err != nil {
		return Stats{}, s.fail(span, err)
	}
	ids, err := s.attributes()
	if err != nil {
		return Stats{}, s.fail(span, err)
	}
	return Stats{
		Size:            s.layout.Size,
		ValueStart:      s.layout.ValueStart(),
		ValueEnd:        s.layout.ValueEnd(),
		Cursor:          cursor,
		BytesUsed:       int64(cursor) - s.layout.ValueStart(),
		BytesFree:       s.layout.ValueEnd() - int64(cursor),
		Attributes:      int(ids.GetCardinality()),
		ErrorCorrection: s.code != nil,
		CRC16Polynomial: s.poly,
	}, nil
}
