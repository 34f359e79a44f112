package engine

import "github.com/roach88/weft/internal/ir"

// Event is the scheduling decision produced by one execution step.
// Sealed: only the types below implement it.
type Event interface {
	event()
}

// Complete reports that the head frame finished. Success is false when the
// result was a Failure.
type Complete struct {
	Success bool
}

// Call asks the scheduler to push a frame for Module.Func. Args are already
// cloned out of the caller's registers.
type Call struct {
	Dst    ir.Reg
	Module string
	Func   string
	Args   ir.Tuple
}

// FutureWait parks the fiber until an asynchronous operation writes Reg.
type FutureWait struct {
	Reg ir.Reg
}

// IOWait parks the fiber until a blocking operation finishes.
type IOWait struct{}

// Fork yields the fiber to the back of the ready queue.
type Fork struct{}

// Uneventful is a step that made no scheduling decision. Receiving one is
// always a defect.
type Uneventful struct{}

func (Complete) event()   {}
func (Call) event()       {}
func (FutureWait) event() {}
func (IOWait) event()     {}
func (Fork) event()       {}
func (Uneventful) event() {}
