package engine

import (
	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// Msg is a message exchanged between the Application and its Workers.
type Msg interface {
	msg()
}

// Spawn asks a Worker to start a new fiber at Module.Func with no arguments.
// Repl spawns deliver their result the same way but mark it as a REPL value.
type Spawn struct {
	Module string
	Func   string
	Repl   bool
}

// RequestCode asks the Application to resolve Module.Func for a fiber.
type RequestCode struct {
	WorkerID int64
	FiberID  int64
	Module   string
	Func     string
}

// FoundCode answers a RequestCode. Exactly one of Code and Failure is set.
type FoundCode struct {
	FiberID int64
	Module  string
	Func    string
	Code    *code.Code
	Failure *ir.Failure
}

// MainResult reports the value a root frame completed with.
type MainResult struct {
	WorkerID int64
	FiberID  int64
	Module   string
	Func     string
	Value    ir.Value
	Repl     bool
	NoMain   bool
}

// FiberAborted reports a defect that ended a fiber.
type FiberAborted struct {
	WorkerID int64
	FiberID  int64
	Module   string
	Func     string
	Err      error
}

// iopDone carries a settled asynchronous operation back to its Worker.
type iopDone struct {
	fiberID int64
	ctx     *iop.Ctx
	outcome iop.Outcome
	err     error
}

func (Spawn) msg()        {}
func (RequestCode) msg()  {}
func (FoundCode) msg()    {}
func (MainResult) msg()   {}
func (FiberAborted) msg() {}
func (iopDone) msg()      {}

// Outbox receives messages. Mailboxes implement it; tests may substitute
// their own.
type Outbox interface {
	Enqueue(m Msg) bool
}
