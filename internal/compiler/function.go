package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/ir"
)

// CompileFunction lowers a CUE function body into bytecode. name is the
// qualified function name used for diagnostics and the Code value.
//
// The CUE value is the function struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`module: test: fn: main: ops: [{op: "return", src: "void"}]`)
//	c, err := CompileFunction("test.main", v.LookupPath(cue.ParsePath("module.test.fn.main")))
func CompileFunction(name string, v cue.Value) (*code.Code, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	opsVal := v.LookupPath(cue.ParsePath("ops"))
	if !opsVal.Exists() {
		return nil, &CompileError{
			Field:   "ops",
			Message: "ops is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := opsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var ops []ir.Op
	for i := 0; iter.Next(); i++ {
		op, err := ParseOp(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: ops[%d]: %w", name, i, err)
		}
		ops = append(ops, op)
	}

	if errs := Validate(ops); len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", name, ValidationErrors(errs))
	}
	return code.Bytecode(name, ops), nil
}

// ParseOp parses one op struct. The "op" field selects the instruction;
// registers use the r<N>, p<N>, void syntax with optional .<N> sub-addresses.
func ParseOp(v cue.Value) (ir.Op, error) {
	name, err := requiredString(v, "op")
	if err != nil {
		return nil, err
	}

	switch name {
	case "const":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		valVal := v.LookupPath(cue.ParsePath("val"))
		if !valVal.Exists() {
			return nil, &CompileError{Field: "val", Message: "const requires val", Pos: v.Pos()}
		}
		val, err := parseValue(valVal)
		if err != nil {
			return nil, err
		}
		return ir.OpConst{Dst: dst, Val: val}, nil

	case "copy":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		src, err := regField(v, "src")
		if err != nil {
			return nil, err
		}
		return ir.OpCopy{Dst: dst, Src: src}, nil

	case "tuple":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		items, err := regList(v, "items")
		if err != nil {
			return nil, err
		}
		return ir.OpTuple{Dst: dst, Items: items}, nil

	case "struct":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		typ, err := requiredString(v, "type")
		if err != nil {
			return nil, err
		}
		items, err := regList(v, "items")
		if err != nil {
			return nil, err
		}
		return ir.OpStruct{Dst: dst, Type: typ, Items: items}, nil

	case "fail":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		tag, err := requiredString(v, "tag")
		if err != nil {
			return nil, err
		}
		msg, err := optionalString(v, "msg")
		if err != nil {
			return nil, err
		}
		return ir.OpFail{Dst: dst, Tag: tag, Msg: msg}, nil

	case "call":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		module, err := requiredString(v, "module")
		if err != nil {
			return nil, err
		}
		fn, err := requiredString(v, "fn")
		if err != nil {
			return nil, err
		}
		args, err := regList(v, "args")
		if err != nil {
			return nil, err
		}
		return ir.OpCall{Dst: dst, Module: ir.NormalizeName(module), Func: ir.NormalizeName(fn), Args: args}, nil

	case "return":
		src, err := regField(v, "src")
		if err != nil {
			return nil, err
		}
		return ir.OpReturn{Src: src}, nil

	case "jump":
		offset, err := intField(v, "offset")
		if err != nil {
			return nil, err
		}
		return ir.OpJump{Offset: offset}, nil

	case "jump_if_not":
		cond, err := regField(v, "cond")
		if err != nil {
			return nil, err
		}
		offset, err := intField(v, "offset")
		if err != nil {
			return nil, err
		}
		return ir.OpJumpIfNot{Cond: cond, Offset: offset}, nil

	case "fork":
		return ir.OpFork{}, nil

	default:
		return nil, &CompileError{
			Field:   "op",
			Message: fmt.Sprintf("unknown op %q", name),
			Pos:     v.Pos(),
		}
	}
}

// parseValue converts a concrete CUE literal to a Value.
// Floats are rejected: the value model has integers only.
func parseValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Void{}, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Str(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var items ir.Tuple
		for iter.Next() {
			item, err := parseValue(iter.Value())
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if items == nil {
			items = ir.Tuple{}
		}
		return items, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "val",
			Message: "float literals are not supported - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "val",
			Message: fmt.Sprintf("unsupported literal kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func intField(v cue.Value, field string) (int, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func regField(v cue.Value, field string) (ir.Reg, error) {
	s, err := requiredString(v, field)
	if err != nil {
		return ir.Reg{}, err
	}
	r, err := ir.ParseReg(s)
	if err != nil {
		return ir.Reg{}, &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}
	return r, nil
}

// regList parses an optional list of registers. A missing list is empty.
func regList(v cue.Value, field string) ([]ir.Reg, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var regs []ir.Reg
	for i := 0; iter.Next(); i++ {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		r, err := ir.ParseReg(s)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		regs = append(regs, r)
	}
	return regs, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
