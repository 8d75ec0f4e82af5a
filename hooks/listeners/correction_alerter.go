package listeners

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/INLOpen/nvattr/hooks"
)

var (
	// Created once so NewCorrectionAlerterListener can be called repeatedly.
	alerterMetricsOnce sync.Once
	correctedBits      *expvar.Int
	integrityFailures  *expvar.Int
)

func initAlerterMetrics() {
	alerterMetricsOnce.Do(func() {
		correctedBits = expvar.NewInt("nvattr_alerter_corrected_bits_total")
		integrityFailures = expvar.NewInt("nvattr_alerter_integrity_failures_total")
	})
}

// CorrectionAlerterListener logs corrected bits and unrecoverable integrity
// failures. A medium that keeps producing corrections is wearing out.
type CorrectionAlerterListener struct {
	logger    *slog.Logger
	threshold int64

	mu      sync.Mutex
	perID   map[uint8]int64
	alerted map[uint8]bool

	corrected *expvar.Int
	failures  *expvar.Int
}

// NewCorrectionAlerterListener creates a listener that escalates to an error
// log once a single id has been corrected threshold times.
func NewCorrectionAlerterListener(logger *slog.Logger, threshold int64) *CorrectionAlerterListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if threshold <= 0 {
		threshold = 3
	}
	initAlerterMetrics()
	return &CorrectionAlerterListener{
		logger:    logger.With("component", "CorrectionAlerterListener"),
		threshold: threshold,
		perID:     make(map[uint8]int64),
		alerted:   make(map[uint8]bool),
		corrected: correctedBits,
		failures:  integrityFailures,
	}
}

// OnEvent handles OnValueCorrected and OnIntegrityFailure.
func (l *CorrectionAlerterListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	switch event.Type() {
	case hooks.EventOnValueCorrected:
		payload, ok := event.Payload().(hooks.ValueCorrectedPayload)
		if !ok {
			l.logger.Error("Received OnValueCorrected event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
			return nil
		}
		l.corrected.Add(1)

		l.mu.Lock()
		l.perID[uint8(payload.ID)]++
		count := l.perID[uint8(payload.ID)]
		escalate := count >= l.threshold && !l.alerted[uint8(payload.ID)]
		if escalate {
			l.alerted[uint8(payload.ID)] = true
		}
		l.mu.Unlock()

		l.logger.Warn("Corrected single-bit error", "id", payload.ID, "bit", payload.Bit, "start", payload.Start)
		if escalate {
			l.logger.Error("Attribute repeatedly corrected, medium may be degrading", "id", payload.ID, "corrections", count)
		}
	case hooks.EventOnIntegrityFailure:
		payload, ok := event.Payload().(hooks.IntegrityFailurePayload)
		if !ok {
			l.logger.Error("Received OnIntegrityFailure event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
			return nil
		}
		l.failures.Add(1)
		l.logger.Error("Uncorrectable integrity failure", "id", payload.ID, "region", payload.Region, "error", payload.Error)
	}
	return nil
}

// Corrections returns how many corrections were seen for id.
func (l *CorrectionAlerterListener) Corrections(id uint8) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perID[id]
}

// Priority defines the execution order.
func (l *CorrectionAlerterListener) Priority() int { return 100 }

// IsAsync indicates this listener can run in the background.
func (l *CorrectionAlerterListener) IsAsync() bool { return true }
