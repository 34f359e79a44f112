package engine

import (
	"fmt"

	"github.com/roach88/weft/internal/ir"
)

// DefaultQuantum is the most ops one ExecuteStep runs before yielding.
const DefaultQuantum = 1024

// ExecuteStep interprets ops from the frame's pc until it reaches a call, a
// return, a fork, or the end of its quantum.
//
// A Call leaves pc on the call op; the scheduler advances it when the callee
// completes. Fork and an exhausted quantum leave pc on the next op to run.
// A non-nil error is an interpreter defect.
func (f *Frame) ExecuteStep(ops []ir.Op, quantum int) (Event, error) {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}

	for n := 0; n < quantum; n++ {
		if f.PC < 0 || f.PC >= len(ops) {
			return nil, fmt.Errorf("%s.%s: pc %d outside code (len %d)", f.Module, f.Func, f.PC, len(ops))
		}

		switch op := ops[f.PC].(type) {
		case ir.OpConst:
			if err := f.regs.Write(op.Dst, ir.Clone(op.Val)); err != nil {
				return nil, f.opError(op, err)
			}
			f.PC++

		case ir.OpCopy:
			v, err := f.regs.Read(op.Src)
			if err != nil {
				return nil, f.opError(op, err)
			}
			if err := f.regs.Write(op.Dst, ir.Clone(v)); err != nil {
				return nil, f.opError(op, err)
			}
			f.PC++

		case ir.OpTuple:
			items, err := f.collect(op.Items)
			if err != nil {
				return nil, f.opError(op, err)
			}
			if err := f.regs.Write(op.Dst, items); err != nil {
				return nil, f.opError(op, err)
			}
			f.PC++

		case ir.OpStruct:
			items, err := f.collect(op.Items)
			if err != nil {
				return nil, f.opError(op, err)
			}
			if err := f.regs.Write(op.Dst, ir.Struct{Name: op.Type, Fields: items}); err != nil {
				return nil, f.opError(op, err)
			}
			f.PC++

		case ir.OpFail:
			if err := f.regs.Write(op.Dst, ir.Failure{Tag: op.Tag, Msg: op.Msg}); err != nil {
				return nil, f.opError(op, err)
			}
			f.PC++

		case ir.OpCall:
			args, err := f.collect(op.Args)
			if err != nil {
				return nil, f.opError(op, err)
			}
			return Call{Dst: op.Dst, Module: op.Module, Func: op.Func, Args: args}, nil

		case ir.OpReturn:
			v, err := f.regs.Read(op.Src)
			if err != nil {
				return nil, f.opError(op, err)
			}
			v = ir.Clone(v)
			if err := f.SetResult(v); err != nil {
				return nil, f.opError(op, err)
			}
			return Complete{Success: !ir.IsFailure(v)}, nil

		case ir.OpJump:
			f.PC += op.Offset

		case ir.OpJumpIfNot:
			v, err := f.regs.Read(op.Cond)
			if err != nil {
				return nil, f.opError(op, err)
			}
			cond, ok := v.(ir.Bool)
			if !ok {
				return nil, f.opError(op, fmt.Errorf("condition is %s, not Bool", ir.TypeName(v)))
			}
			if cond {
				f.PC++
			} else {
				f.PC += op.Offset
			}

		case ir.OpFork:
			f.PC++
			return Fork{}, nil

		default:
			return nil, fmt.Errorf("%s.%s: pc %d: unsupported op %T", f.Module, f.Func, f.PC, op)
		}
	}

	return Fork{}, nil
}

func (f *Frame) collect(regs []ir.Reg) (ir.Tuple, error) {
	out := make(ir.Tuple, len(regs))
	for i, r := range regs {
		v, err := f.regs.Read(r)
		if err != nil {
			return nil, err
		}
		out[i] = ir.Clone(v)
	}
	return out, nil
}

func (f *Frame) opError(op ir.Op, err error) error {
	return fmt.Errorf("%s.%s: pc %d (%s): %w", f.Module, f.Func, f.PC, ir.FormatOp(op), err)
}
