package listeners

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/hooks"
	"github.com/RoaringBitmap/roaring"
)

// ErrProtectedAttribute is returned when a write targets a read-only id.
var ErrProtectedAttribute = errors.New("attribute is write-protected")

// WriteGuardListener rejects writes to a fixed set of attribute ids.
// It runs as a pre-hook so a rejection leaves the medium untouched.
type WriteGuardListener struct {
	protected *roaring.Bitmap
	logger    *slog.Logger
}

// NewWriteGuardListener creates a guard for the given ids.
func NewWriteGuardListener(logger *slog.Logger, ids ...core.AttributeID) *WriteGuardListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	bm := roaring.New()
	for _, id := range ids {
		bm.Add(uint32(id))
	}
	return &WriteGuardListener{
		protected: bm,
		logger:    logger.With("component", "WriteGuardListener"),
	}
}

// Protected reports whether id is guarded.
func (l *WriteGuardListener) Protected(id core.AttributeID) bool {
	return l.protected.Contains(uint32(id))
}

// OnEvent handles the PreSetAttribute event.
func (l *WriteGuardListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	if event.Type() != hooks.EventPreSetAttribute {
		return nil
	}

	payload, ok := event.Payload().(hooks.PreSetAttributePayload)
	if !ok {
		l.logger.Error("Received PreSetAttribute event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
		return nil
	}

	if l.Protected(payload.ID) {
		l.logger.Warn("Rejected write to protected attribute", "id", payload.ID)
		return fmt.Errorf("%w: id %d", ErrProtectedAttribute, payload.ID)
	}
	return nil
}

// Priority runs the guard ahead of other pre-hooks.
func (l *WriteGuardListener) Priority() int { return 1 }

// IsAsync is false; pre-hooks are synchronous anyway.
func (l *WriteGuardListener) IsAsync() bool { return false }
