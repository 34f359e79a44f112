package ir

import (
	"fmt"
	"strings"
)

// Op is a sealed interface over bytecode instructions.
type Op interface {
	irOp() // Sealed
	// Name returns the assembly mnemonic.
	Name() string
}

// OpConst writes a literal into Dst.
type OpConst struct {
	Dst Reg
	Val Value
}

// OpCopy clones Src into Dst.
type OpCopy struct {
	Dst Reg
	Src Reg
}

// OpTuple builds a tuple from cloned registers.
type OpTuple struct {
	Dst   Reg
	Items []Reg
}

// OpStruct builds a named struct from cloned registers.
type OpStruct struct {
	Dst   Reg
	Type  string
	Items []Reg
}

// OpFail writes a Failure value into Dst.
type OpFail struct {
	Dst Reg
	Tag string
	Msg string
}

// OpCall requests a call of Module.Func with the cloned Args; the callee's
// result lands in Dst.
type OpCall struct {
	Dst    Reg
	Module string
	Func   string
	Args   []Reg
}

// OpReturn completes the frame with the value at Src.
type OpReturn struct {
	Src Reg
}

// OpJump moves the program counter by Offset relative to this op.
type OpJump struct {
	Offset int
}

// OpJumpIfNot jumps by Offset when Cond holds Bool(false).
type OpJumpIfNot struct {
	Cond   Reg
	Offset int
}

// OpFork yields the fiber to the back of its worker's ready queue.
type OpFork struct{}

func (OpConst) irOp()     {}
func (OpCopy) irOp()      {}
func (OpTuple) irOp()     {}
func (OpStruct) irOp()    {}
func (OpFail) irOp()      {}
func (OpCall) irOp()      {}
func (OpReturn) irOp()    {}
func (OpJump) irOp()      {}
func (OpJumpIfNot) irOp() {}
func (OpFork) irOp()      {}

func (OpConst) Name() string     { return "const" }
func (OpCopy) Name() string      { return "copy" }
func (OpTuple) Name() string     { return "tuple" }
func (OpStruct) Name() string    { return "struct" }
func (OpFail) Name() string      { return "fail" }
func (OpCall) Name() string      { return "call" }
func (OpReturn) Name() string    { return "return" }
func (OpJump) Name() string      { return "jump" }
func (OpJumpIfNot) Name() string { return "jump_if_not" }
func (OpFork) Name() string      { return "fork" }

// FormatOp renders op as one line of assembly.
func FormatOp(op Op) string {
	switch o := op.(type) {
	case OpConst:
		return fmt.Sprintf("const %s %s", o.Dst, o.Val)
	case OpCopy:
		return fmt.Sprintf("copy %s %s", o.Dst, o.Src)
	case OpTuple:
		return fmt.Sprintf("tuple %s %s", o.Dst, formatRegs(o.Items))
	case OpStruct:
		return fmt.Sprintf("struct %s %s %s", o.Dst, o.Type, formatRegs(o.Items))
	case OpFail:
		return fmt.Sprintf("fail %s %s %q", o.Dst, o.Tag, o.Msg)
	case OpCall:
		return fmt.Sprintf("call %s %s.%s %s", o.Dst, o.Module, o.Func, formatRegs(o.Args))
	case OpReturn:
		return fmt.Sprintf("return %s", o.Src)
	case OpJump:
		return fmt.Sprintf("jump %+d", o.Offset)
	case OpJumpIfNot:
		return fmt.Sprintf("jump_if_not %s %+d", o.Cond, o.Offset)
	case OpFork:
		return "fork"
	default:
		return fmt.Sprintf("<unknown op %T>", op)
	}
}

// Disassemble renders ops one per line, prefixed with their index.
func Disassemble(ops []Op) string {
	var sb strings.Builder
	for i, op := range ops {
		fmt.Fprintf(&sb, "%4d  %s\n", i, FormatOp(op))
	}
	return sb.String()
}

func formatRegs(regs []Reg) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
