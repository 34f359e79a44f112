package engine

import (
	"context"
	"time"

	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// DefaultMaxDepth is the default call depth limit per fiber.
const DefaultMaxDepth = 1024

// Recorder persists protocol messages. Implemented by store.Store.
// Record errors are logged and never stop the runtime.
type Recorder interface {
	BeginRun(ctx context.Context, run ir.Run) error
	Record(ctx context.Context, e ir.TraceEntry) error
}

type settings struct {
	workers      int
	maxDepth     int
	quantum      int
	iopTimeout   time.Duration
	pollInterval time.Duration
	recorder     Recorder
	runIDs       RunIDGenerator
}

func defaultSettings() settings {
	return settings{
		workers:      1,
		maxDepth:     DefaultMaxDepth,
		quantum:      DefaultQuantum,
		iopTimeout:   iop.DefaultTimeout,
		pollInterval: iop.DefaultPollWait,
		runIDs:       UUIDv7Generator{},
	}
}

// Option configures a Worker or an Application.
type Option func(*settings)

// WithWorkers sets how many Workers an Application starts.
// Ignored by NewWorker.
func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxDepth sets the call depth limit. Exceeding it aborts the fiber
// with STACK_OVERFLOW.
//
// Default: 1024 frames (DefaultMaxDepth)
func WithMaxDepth(n int) Option {
	return func(s *settings) {
		s.maxDepth = n
	}
}

// WithQuantum sets how many ops a fiber may run before yielding.
func WithQuantum(n int) Option {
	return func(s *settings) {
		s.quantum = n
	}
}

// WithIopTimeout bounds each I/O operation. Zero disables the bound.
func WithIopTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.iopTimeout = d
	}
}

// WithPollInterval sets the longest a single future poll may block.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) {
		s.pollInterval = d
	}
}

// WithRecorder records every protocol message the Application sees.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		s.recorder = r
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *settings) {
		s.runIDs = g
	}
}
