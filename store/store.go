// Package store implements the attribute store: a small id-to-bytes map laid
// out on a raw medium as an allocation directory, a persisted arena cursor
// and an append-only value region, with every record and value guarded by
// a CRC.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/INLOpen/nvattr/arena"
	"github.com/INLOpen/nvattr/checksum"
	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/directory"
	"github.com/INLOpen/nvattr/ecc"
	"github.com/INLOpen/nvattr/hooks"
	"github.com/INLOpen/nvattr/medium"
	"github.com/INLOpen/nvattr/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AttributeStore is safe for concurrent use. Every operation runs under one
// lock, which covers the read-compute-write of the arena cursor and of a
// directory slot.
type AttributeStore struct {
	mu     sync.Mutex
	closed bool

	m      medium.Medium
	layout core.Layout
	dir    *directory.Directory
	arena  *arena.Allocator

	poly     uint16
	crcTable *checksum.Table16
	// code is nil when error correction is disabled.
	code *ecc.Code

	logger  *slog.Logger
	tracer  trace.Tracer
	hooks   hooks.HookManager
	metrics *metrics.Collector
}

func newStore(opts Options) (*AttributeStore, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, &core.StorageError{Op: "open", Err: err}
	}
	if opts.Layout.Size != opts.Medium.Size() {
		return nil, &core.StorageError{Op: "open", Err: fmt.Errorf("layout expects %d bytes, medium has %d", opts.Layout.Size, opts.Medium.Size())}
	}

	s := &AttributeStore{
		m:        opts.Medium,
		layout:   opts.Layout,
		dir:      directory.New(opts.Medium, opts.Layout),
		arena:    arena.New(opts.Medium, opts.Layout),
		poly:     opts.CRC16Polynomial,
		crcTable: checksum.MakeTable16(opts.CRC16Polynomial),
		logger:   opts.Logger.With("component", "AttributeStore"),
		tracer:   opts.Tracer,
		hooks:    opts.Hooks,
		metrics:  opts.Metrics,
	}
	if opts.ErrorCorrection {
		code, err := ecc.NewCode(1<<16 | uint32(opts.CRC16Polynomial))
		if err != nil {
			return nil, fmt.Errorf("error correction with crc16 polynomial 0x%04X: %w", opts.CRC16Polynomial, err)
		}
		s.code = code
	}
	return s, nil
}

// Format erases the medium, lays out an empty directory and resets the
// arena cursor, then returns the opened store.
func Format(ctx context.Context, opts Options) (*AttributeStore, error) {
	s, err := newStore(opts)
	if err != nil {
		return nil, err
	}
	_, span := s.tracer.Start(ctx, "AttributeStore.Format")
	defer span.End()
	start := time.Now()

	if err := s.m.Erase(core.ErasedByte); err != nil {
		return nil, s.fail(span, &core.StorageError{Op: "erase", Want: int(s.m.Size()), Err: err})
	}
	if err := s.dir.Format(); err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.arena.Reset(); err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.m.Sync(); err != nil {
		return nil, s.fail(span, &core.StorageError{Op: "sync", Err: err})
	}
	s.observe(metrics.OpFormat, start)
	s.logger.Info("Formatted medium", "size", s.layout.Size, "value_start", s.layout.ValueStart(), "value_end", s.layout.ValueEnd(), "error_correction", s.code != nil)
	_ = s.hooks.Trigger(ctx, hooks.NewPostFormatEvent(hooks.FormatPayload{Size: s.layout.Size, ValueStart: s.layout.ValueStart()}))
	return s, nil
}

// Open attaches to a formatted medium. A damaged arena cursor fails the open.
func Open(ctx context.Context, opts Options) (*AttributeStore, error) {
	s, err := newStore(opts)
	if err != nil {
		return nil, err
	}
	_, span := s.tracer.Start(ctx, "AttributeStore.Open")
	defer span.End()

	cursor, err := s.arena.Cursor()
	if err != nil {
		return nil, s.fail(span, err)
	}
	s.logger.Info("Opened attribute store", "size", s.layout.Size, "cursor", cursor, "error_correction", s.code != nil)
	return s, nil
}

// Layout returns the medium layout.
func (s *AttributeStore) Layout() core.Layout { return s.layout }

// Metrics returns the store's collector.
func (s *AttributeStore) Metrics() *metrics.Collector { return s.metrics }

// ErrorCorrection reports whether single-bit correction is enabled.
func (s *AttributeStore) ErrorCorrection() bool { return s.code != nil }

// Close syncs and closes the medium and waits for async hooks. Later calls
// return core.ErrClosed.
func (s *AttributeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClosed
	}
	_ = s.hooks.Trigger(context.Background(), hooks.NewPreCloseEvent())
	s.closed = true
	s.hooks.Stop()

	var errs []error
	if err := s.m.Sync(); err != nil {
		errs = append(errs, &core.StorageError{Op: "sync", Err: err})
	}
	if err := s.m.Close(); err != nil {
		errs = append(errs, &core.StorageError{Op: "close", Err: err})
	}
	s.logger.Info("Closed attribute store")
	return errors.Join(errs...)
}

// lock acquires the store lock, failing if the store is closed.
func (s *AttributeStore) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrClosed
	}
	return nil
}

func (s *AttributeStore) observe(op string, start time.Time) {
	if err := s.metrics.ObserveLatency(op, time.Since(start)); err != nil {
		s.logger.Debug("Failed to record latency", "op", op, "error", err)
	}
}

// fail marks the span as failed and returns err unchanged.
func (s *AttributeStore) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// classify counts, logs and reports err for attribute id. Not-found is an
// expected outcome and leaves the span status alone.
func (s *AttributeStore) classify(ctx context.Context, span trace.Span, id core.AttributeID, err error) error {
	var integrity *core.IntegrityError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrNotFound):
		s.metrics.NotFoundTotal.Add(1)
		span.SetAttributes(attribute.Bool("nvattr.found", false))
		return err
	case errors.As(err, &integrity):
		s.metrics.IntegrityErrorsTotal.Add(1)
		s.logger.Warn("Integrity check failed", "id", id, "region", integrity.Region, "stored", integrity.Want, "computed", integrity.Got)
		_ = s.hooks.Trigger(ctx, hooks.NewOnIntegrityFailureEvent(hooks.IntegrityFailurePayload{ID: id, Region: integrity.Region, Error: err}))
	case errors.Is(err, core.ErrLengthConflict):
		s.metrics.LengthConflictsTotal.Add(1)
		s.logger.Warn("Length conflict", "id", id, "error", err)
	case errors.Is(err, core.ErrStorage):
		s.metrics.StorageFailuresTotal.Add(1)
		s.logger.Error("Storage failure", "id", id, "error", err)
	}
	return s.fail(span, err)
}
