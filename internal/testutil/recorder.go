package testutil

import (
	"context"
	"sync"

	"github.com/roach88/weft/internal/ir"
)

// MemoryRecorder keeps trace entries in memory.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryRecorder struct {
	mu      sync.Mutex
	runs    []ir.Run
	entries []ir.TraceEntry
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// BeginRun records run.
func (r *MemoryRecorder) BeginRun(_ context.Context, run ir.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

// Record appends e.
func (r *MemoryRecorder) Record(_ context.Context, e ir.TraceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// Runs returns a copy of the recorded runs.
func (r *MemoryRecorder) Runs() []ir.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Run(nil), r.runs...)
}

// Entries returns a copy of the recorded entries in record order.
func (r *MemoryRecorder) Entries() []ir.TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.TraceEntry(nil), r.entries...)
}

// Count returns how many entries of kind were recorded.
func (r *MemoryRecorder) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
