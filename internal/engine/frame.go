package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/ir"
)

// ParentKind says where a frame's result goes.
type ParentKind int

const (
	// ParentNull has no receiver; completing such a frame is a defect.
	ParentNull ParentKind = iota
	// ParentCaller writes the result into the caller's destination register.
	ParentCaller
	// ParentMain holds the result of an entry call.
	ParentMain
	// ParentRepl holds the result of an interactive evaluation.
	ParentRepl
)

func (k ParentKind) String() string {
	switch k {
	case ParentNull:
		return "null"
	case ParentCaller:
		return "caller"
	case ParentMain:
		return "main"
	case ParentRepl:
		return "repl"
	default:
		return fmt.Sprintf("ParentKind(%d)", int(k))
	}
}

// Parent links a frame to the receiver of its result.
type Parent struct {
	Kind   ParentKind
	Caller *Frame
	Dst    ir.Reg
}

// ErrNoParent is returned when a frame with a Null parent sets its result.
var ErrNoParent = errors.New("frame has no result receiver")

// Frame is one activation of a function.
type Frame struct {
	Module string
	Func   string
	PC     int

	regs   *ir.Registers
	parent Parent
	code   *code.Code

	// result is the last value passed to SetResult; for Main and Repl
	// parents it is the result slot.
	result ir.Value
}

// NewRootFrame creates the outermost activation of an entry call.
func NewRootFrame(module, fn string) *Frame {
	return &Frame{
		Module: module,
		Func:   fn,
		regs:   ir.NewRegisters(nil),
		parent: Parent{Kind: ParentMain},
	}
}

// NewReplFrame creates an outermost activation whose result is a REPL value.
func NewReplFrame(module, fn string) *Frame {
	f := NewRootFrame(module, fn)
	f.parent.Kind = ParentRepl
	return f
}

// NewCallFrame creates an activation called from caller. Its result will be
// written to dst in the caller's registers. The frame takes ownership of args.
func NewCallFrame(caller *Frame, dst ir.Reg, module, fn string, args ir.Tuple) *Frame {
	return &Frame{
		Module: module,
		Func:   fn,
		regs:   ir.NewRegisters(args),
		parent: Parent{Kind: ParentCaller, Caller: caller, Dst: dst},
	}
}

// Parent returns the frame's result receiver.
func (f *Frame) Parent() Parent { return f.parent }

// Code returns the code bound to the frame, or nil while it is unresolved.
func (f *Frame) Code() *code.Code { return f.code }

// Bind attaches resolved code to the frame.
func (f *Frame) Bind(c *code.Code) { f.code = c }

// Params returns the argument tuple the frame was called with.
func (f *Frame) Params() ir.Tuple { return f.regs.Params() }

// Read returns the value at r.
func (f *Frame) Read(r ir.Reg) (ir.Value, error) { return f.regs.Read(r) }

// Write stores v at r.
func (f *Frame) Write(r ir.Reg, v ir.Value) error { return f.regs.Write(r, v) }

// Result returns the value last passed to SetResult, or nil.
func (f *Frame) Result() ir.Value { return f.result }

// SetResult delivers v to the frame's parent. It is the only way a frame
// communicates its outcome.
func (f *Frame) SetResult(v ir.Value) error {
	switch f.parent.Kind {
	case ParentCaller:
		if err := f.parent.Caller.regs.Write(f.parent.Dst, v); err != nil {
			return fmt.Errorf("set result of %s.%s into %s: %w", f.Module, f.Func, f.parent.Dst, err)
		}
	case ParentMain, ParentRepl:
	default:
		return fmt.Errorf("%s.%s: %w", f.Module, f.Func, ErrNoParent)
	}
	f.result = v
	return nil
}

// Clone returns a copy of f with its own registers. The parent link and
// code are shared.
func (f *Frame) Clone() *Frame {
	cp := *f
	cp.regs = f.regs.Clone()
	if f.result != nil {
		cp.result = ir.Clone(f.result)
	}
	return &cp
}
