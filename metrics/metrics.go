// Package metrics counts attribute store operations and keeps a latency
// sketch per operation.
package metrics

import (
	"expvar"
	"fmt"
	"sort"
	"sync"
	"time"

	tdigest "github.com/caio/go-tdigest/v4"
)

// Operation names used as latency keys.
const (
	OpSet    = "set"
	OpGet    = "get"
	OpVerify = "verify"
	OpFormat = "format"
)

// Collector holds the store's counters. The counters are unpublished until
// Publish is called, so several collectors can coexist in tests.
type Collector struct {
	SetsTotal            *expvar.Int
	GetsTotal            *expvar.Int
	NotFoundTotal        *expvar.Int
	IntegrityErrorsTotal *expvar.Int
	LengthConflictsTotal *expvar.Int
	StorageFailuresTotal *expvar.Int
	CorrectionsTotal     *expvar.Int
	BytesWrittenTotal    *expvar.Int

	mu        sync.Mutex
	latencies map[string]*tdigest.TDigest
	published bool
}

// NewCollector creates a collector with zeroed counters.
func NewCollector() *Collector {
	return &Collector{
		SetsTotal:            new(expvar.Int),
		GetsTotal:            new(expvar.Int),
		NotFoundTotal:        new(expvar.Int),
		IntegrityErrorsTotal: new(expvar.Int),
		LengthConflictsTotal: new(expvar.Int),
		StorageFailuresTotal: new(expvar.Int),
		CorrectionsTotal:     new(expvar.Int),
		BytesWrittenTotal:    new(expvar.Int),
		latencies:            make(map[string]*tdigest.TDigest),
	}
}

// ObserveLatency records d for op.
func (c *Collector) ObserveLatency(op string, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	td, ok := c.latencies[op]
	if !ok {
		var err error
		td, err = tdigest.New()
		if err != nil {
			return fmt.Errorf("tdigest.New failed: %w", err)
		}
		c.latencies[op] = td
	}
	if err := td.AddWeighted(d.Seconds(), 1); err != nil {
		return fmt.Errorf("tdigest AddWeighted failed: %w", err)
	}
	return nil
}

// Quantile returns the q-quantile of op's latency in seconds. ok is false
// when nothing was observed for op.
func (c *Collector) Quantile(op string, q float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	td, found := c.latencies[op]
	if !found || td.Count() == 0 {
		return 0, false
	}
	return td.Quantile(q), true
}

// Count returns how many latencies were observed for op.
func (c *Collector) Count(op string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if td, ok := c.latencies[op]; ok {
		return td.Count()
	}
	return 0
}

// Operations returns the names that have latency data, sorted.
func (c *Collector) Operations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := make([]string, 0, len(c.latencies))
	for op := range c.latencies {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Snapshot returns the counter values keyed by their published suffix.
func (c *Collector) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	for name, v := range c.counters() {
		out[name] = v.Value()
	}
	return out
}

func (c *Collector) counters() map[string]*expvar.Int {
	return map[string]*expvar.Int{
		"sets_total":             c.SetsTotal,
		"gets_total":             c.GetsTotal,
		"not_found_total":        c.NotFoundTotal,
		"integrity_errors_total": c.IntegrityErrorsTotal,
		"length_conflicts_total": c.LengthConflictsTotal,
		"storage_failures_total": c.StorageFailuresTotal,
		"corrections_total":      c.CorrectionsTotal,
		"bytes_written_total":    c.BytesWrittenTotal,
	}
}

// Publish exposes the collector under prefix in the process-wide expvar
// registry. Publishing twice is a no-op.
func (c *Collector) Publish(prefix string) {
	c.mu.Lock()
	if c.published {
		c.mu.Unlock()
		return
	}
	c.published = true
	c.mu.Unlock()

	if prefix != "" {
		prefix += "_"
	}
	for name, v := range c.counters() {
		v := v
		publishExpvarFunc(prefix+name, func() interface{} { return v.Value() })
	}
	publishExpvarFunc(prefix+"latency_seconds", func() interface{} {
		out := make(map[string]map[string]float64)
		for _, op := range c.Operations() {
			qs := make(map[string]float64, 3)
			for _, q := range []float64{0.5, 0.9, 0.99} {
				if v, ok := c.Quantile(op, q); ok {
					qs[fmt.Sprintf("p%g", q*100)] = v
				}
			}
			out[op] = qs
		}
		return out
	})
}

// publishExpvarFunc publishes f under name unless the name is taken.
// expvar.Publish panics on reuse.
func publishExpvarFunc(name string, f func() interface{}) {
	if expvar.Get(name) != nil {
		return
	}
	expvar.Publish(name, expvar.Func(f))
}
