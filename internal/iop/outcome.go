package iop

import (
	"context"

	"github.com/roach88/weft/internal/ir"
)

// Outcome is a sealed interface over the results of an I/O operation.
type Outcome interface {
	outcome() // Sealed
}

// Result completes the operation with Value, optionally handing a resource
// back to the fiber.
type Result struct {
	Value ir.Value
	Rsrc  Resource
}

// NewResource completes the operation with a newly created resource.
// Prev, if set, is the resource the operation was given, handed back.
type NewResource struct {
	Rsrc Resource
	Prev Resource
}

// Async defers completion to a pollable Future.
type Async struct {
	Future Future
}

// Blocking defers completion to a job that may block; it runs on its own
// goroutine under the operation's timeout. Rsrc is the resource the job
// holds while it runs. The job must hand Rsrc back in its outcome; on
// expiry the driver interrupts it and reclaims Rsrc.
type Blocking struct {
	Run  func(ctx context.Context) Outcome
	Rsrc Resource
}

func (Result) outcome()      {}
func (NewResource) outcome() {}
func (Async) outcome()       {}
func (Blocking) outcome()    {}

// Future is a pollable pending operation. Poll must not block longer than
// c.PollWait(). When it returns not-ready it must leave any resource it took
// back in c.
type Future interface {
	Poll(c *Ctx) (Outcome, bool)
}

// FutureFunc adapts a function to Future.
type FutureFunc func(c *Ctx) (Outcome, bool)

func (f FutureFunc) Poll(c *Ctx) (Outcome, bool) { return f(c) }

// Settled reports whether o is final (Result or NewResource).
func Settled(o Outcome) bool {
	switch o.(type) {
	case Result, NewResource:
		return true
	default:
		return false
	}
}

// Fail is shorthand for a Result carrying a Failure and handing r back.
func Fail(tag, msg string, r Resource) Result {
	return Result{Value: ir.Failure{Tag: tag, Msg: msg}, Rsrc: r}
}
