package store

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/INLOpen/nvattr/checksum"
	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/hooks"
	"github.com/INLOpen/nvattr/medium"
	"github.com/INLOpen/nvattr/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Options configures an AttributeStore.
type Options struct {
	// Medium is required. The store takes ownership and closes it.
	Medium medium.Medium
	// Layout defaults to the reference directory over the whole medium.
	Layout core.Layout
	// CRC16Polynomial is the value checksum generator without its x^16
	// term. Zero selects checksum.Primitive16.
	CRC16Polynomial uint16
	// ErrorCorrection repairs a single flipped bit in a stored value on
	// read. It needs a primitive CRC16Polynomial.
	ErrorCorrection bool

	Logger *slog.Logger
	Tracer trace.Tracer
	// Hooks are triggered with the store lock held. A synchronous listener
	// must not call back into the store; it would deadlock.
	Hooks   hooks.HookManager
	Metrics *metrics.Collector
}

func (o *Options) applyDefaults() error {
	if o.Medium == nil {
		return &core.StorageError{Op: "open", Err: fmt.Errorf("no medium")}
	}
	if o.Layout.Slots == 0 && o.Layout.Size == 0 {
		o.Layout = core.NewLayout(o.Medium.Size())
	}
	if o.CRC16Polynomial == 0 {
		o.CRC16Polynomial = checksum.Primitive16
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer("nvattr/store")
	}
	if o.Hooks == nil {
		o.Hooks = hooks.NewHookManager(o.Logger)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewCollector()
	}
	return nil
}
