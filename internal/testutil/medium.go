// Package testutil holds helpers shared by package tests: a medium that
// misbehaves on demand and helpers that damage stored bytes.
package testutil

import (
	"errors"
	"sync"
	"testing"

	"github.com/INLOpen/nvattr/medium"
)

// ErrInjected is returned by FaultyMedium when a fault carries an error.
var ErrInjected = errors.New("testutil: injected fault")

// Fault describes how a transfer misbehaves once armed.
type Fault struct {
	// After is the number of transfers that succeed before the fault fires.
	After int
	// Keep is how many bytes of the failing transfer reach the medium.
	// A negative value keeps half of the request.
	Keep int
	// Err is returned with the short count. Nil models a silent short transfer.
	Err error
}

// FaultyMedium wraps a medium and shortens reads or writes on demand.
type FaultyMedium struct {
	medium.Medium

	mu         sync.Mutex
	readFault  *Fault
	writeFault *Fault
	reads      int
	writes     int
}

var _ medium.Medium = (*FaultyMedium)(nil)

// NewFaultyMedium wraps m. No faults are armed.
func NewFaultyMedium(m medium.Medium) *FaultyMedium {
	return &FaultyMedium{Medium: m}
}

// FailWrites arms a write fault. Counting starts now.
func (f *FaultyMedium) FailWrites(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeFault = &fault
	f.writes = 0
}

// FailReads arms a read fault. Counting starts now.
func (f *FaultyMedium) FailReads(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFault = &fault
	f.reads = 0
}

// Heal disarms both faults.
func (f *FaultyMedium) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFault, f.writeFault = nil, nil
}

// Writes returns how many writes were attempted since the last FailWrites.
func (f *FaultyMedium) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func keep(fault *Fault, want int) int {
	if fault.Keep < 0 || fault.Keep > want {
		return want / 2
	}
	return fault.Keep
}

func (f *FaultyMedium) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.reads++
	fault := f.readFault
	fire := fault != nil && f.reads > fault.After
	f.mu.Unlock()
	if !fire {
		return f.Medium.ReadAt(p, off)
	}
	n, err := f.Medium.ReadAt(p[:keep(fault, len(p))], off)
	if err != nil {
		return n, err
	}
	return n, fault.Err
}

func (f *FaultyMedium) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.writes++
	fault := f.writeFault
	fire := fault != nil && f.writes > fault.After
	f.mu.Unlock()
	if !fire {
		return f.Medium.WriteAt(p, off)
	}
	n, err := f.Medium.WriteAt(p[:keep(fault, len(p))], off)
	if err != nil {
		return n, err
	}
	return n, fault.Err
}

// FlipBit inverts one bit of the byte at off. bit 0 is the least significant.
func FlipBit(t testing.TB, m medium.Medium, off int64, bit uint) {
	t.Helper()
	var b [1]byte
	if _, err := m.ReadAt(b[:], off); err != nil {
		t.Fatalf("FlipBit: read at %d: %v", off, err)
	}
	b[0] ^= 1 << (bit & 7)
	if _, err := m.WriteAt(b[:], off); err != nil {
		t.Fatalf("FlipBit: write at %d: %v", off, err)
	}
}

// XorByte xors the byte at off with mask.
func XorByte(t testing.TB, m medium.Medium, off int64, mask byte) {
	t.Helper()
	var b [1]byte
	if _, err := m.ReadAt(b[:], off); err != nil {
		t.Fatalf("XorByte: read at %d: %v", off, err)
	}
	b[0] ^= mask
	if _, err := m.WriteAt(b[:], off); err != nil {
		t.Fatalf("XorByte: write at %d: %v", off, err)
	}
}

// ReadBytes returns n bytes at off or fails the test.
func ReadBytes(t testing.TB, m medium.Medium, off int64, n int) []byte {
	t.Helper()
	out := make([]byte, n)
	if got, err := m.ReadAt(out, off); got != n {
		t.Fatalf("ReadBytes: %d of %d bytes at %d: %v", got, n, off, err)
	}
	return out
}
