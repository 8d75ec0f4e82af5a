package store

import (
	"context"
	"fmt"
	"io"

	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/hooks"
	"github.com/INLOpen/nvattr/snapshot"
	"go.opentelemetry.io/otel/attribute"
)

// Snapshot writes the whole medium to w compressed with c. A nil c stores
// the image uncompressed.
func (s *AttributeStore) Snapshot(ctx context.Context, w io.Writer, c core.Compressor) (snapshot.Manifest, error) {
	ctx, span := s.tracer.Start(ctx, "AttributeStore.Snapshot")
	defer span.End()

	if err := s.lock(); err != nil {
		return snapshot.Manifest{}, s.fail(span, err)
	}
	defer s.mu.Unlock()

	manifest, err := snapshot.Write(w, s.m, c)
	if err != nil {
		return manifest, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("nvattr.snapshot_id", manifest.ID), attribute.String("nvattr.compression", manifest.Compression.String()))
	s.logger.Info("Snapshot written", "id", manifest.ID, "compression", manifest.Compression, "image_size", manifest.ImageSize)
	_ = s.hooks.Trigger(ctx, hooks.NewPostSnapshotEvent(hooks.SnapshotPayload{ID: manifest.ID, Compression: manifest.Compression, ImageSize: manifest.ImageSize}))
	return manifest, nil
}

// Restore replaces the medium contents with a snapshot read from r. The
// snapshot must verify and match the medium size; otherwise the medium is
// not touched.
func (s *AttributeStore) Restore(ctx context.Context, r io.Reader) (snapshot.Manifest, error) {
	ctx, span := s.tracer.Start(ctx, "AttributeStore.Restore")
	defer span.End()

	if err := s.lock(); err != nil {
		return snapshot.Manifest{}, s.fail(span, err)
	}
	defer s.mu.Unlock()

	manifest, err := snapshot.Restore(r, s.m)
	if err != nil {
		return manifest, s.fail(span, err)
	}
	if _, err := s.arena.Cursor(); err != nil {
		return manifest, s.fail(span, fmt.Errorf("restored image %s: %w", manifest.ID, err))
	}
	span.SetAttributes(attribute.String("nvattr.snapshot_id", manifest.ID))
	s.logger.Info("Snapshot restored", "id", manifest.ID, "created_at", manifest.Created(), "image_size", manifest.ImageSize)
	_ = s.hooks.Trigger(ctx, hooks.NewPostRestoreEvent(hooks.SnapshotPayload{ID: manifest.ID, Compression: manifest.Compression, ImageSize: manifest.ImageSize}))
	return manifest, nil
}
