package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/weft/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrEmptyFunction     = "E201" // function has no ops
	ErrJumpOutOfRange    = "E202" // jump target outside the function
	ErrFallsOffEnd       = "E203" // last op can fall through
	ErrCallMissingName   = "E204" // call without module or fn
	ErrWriteToParam      = "E205" // destination is a parameter register
	ErrFailMissingTag    = "E206" // fail without a tag
	ErrStructMissingType = "E207" // struct without a type name
)

// ValidationError represents an op sequence validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors reports every problem found in one function.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Validate checks an op sequence for structural errors the interpreter
// would otherwise hit at runtime. Returns all errors found (does not
// fail-fast).
func Validate(ops []ir.Op) []ValidationError {
	var errs []ValidationError

	// E201: a function must do something
	if len(ops) == 0 {
		return []ValidationError{{
			Field:   "ops",
			Message: "function has no ops",
			Code:    ErrEmptyFunction,
		}}
	}

	for i, op := range ops {
		field := fmt.Sprintf("ops[%d]", i)

		// E205: parameters are read-only
		if dst, ok := destination(op); ok && dst.IsParam() {
			errs = append(errs, ValidationError{
				Field:   field + ".dst",
				Message: fmt.Sprintf("%s writes to parameter register %s", op.Name(), dst),
				Code:    ErrWriteToParam,
			})
		}

		switch o := op.(type) {
		case ir.OpJump:
			errs = append(errs, checkTarget(field, i, o.Offset, len(ops))...)
		case ir.OpJumpIfNot:
			errs = append(errs, checkTarget(field, i, o.Offset, len(ops))...)

		case ir.OpCall:
			// E204: callee must be named
			if strings.TrimSpace(o.Module) == "" || strings.TrimSpace(o.Func) == "" {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("call needs module and fn, got %q.%q", o.Module, o.Func),
					Code:    ErrCallMissingName,
				})
			}

		case ir.OpFail:
			if strings.TrimSpace(o.Tag) == "" {
				errs = append(errs, ValidationError{
					Field:   field + ".tag",
					Message: "fail needs a tag",
					Code:    ErrFailMissingTag,
				})
			}

		case ir.OpStruct:
			if strings.TrimSpace(o.Type) == "" {
				errs = append(errs, ValidationError{
					Field:   field + ".type",
					Message: "struct needs a type name",
					Code:    ErrStructMissingType,
				})
			}
		}
	}

	// E203: execution must never run past the last op
	switch ops[len(ops)-1].(type) {
	case ir.OpReturn, ir.OpJump:
	default:
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("ops[%d]", len(ops)-1),
			Message: fmt.Sprintf("last op is %s; must be return or jump", ops[len(ops)-1].Name()),
			Code:    ErrFallsOffEnd,
		})
	}

	return errs
}

// checkTarget validates a relative jump (E202).
func checkTarget(field string, pc, offset, n int) []ValidationError {
	target := pc + offset
	if target >= 0 && target < n {
		return nil
	}
	return []ValidationError{{
		Field:   field + ".offset",
		Message: fmt.Sprintf("jump %+d from %d lands at %d, outside 0..%d", offset, pc, target, n-1),
		Code:    ErrJumpOutOfRange,
	}}
}

func destination(op ir.Op) (ir.Reg, bool) {
	switch o := op.(type) {
	case ir.OpConst:
		return o.Dst, true
	case ir.OpCopy:
		return o.Dst, true
	case ir.OpTuple:
		return o.Dst, true
	case ir.OpStruct:
		return o.Dst, true
	case ir.OpFail:
		return o.Dst, true
	case ir.OpCall:
		return o.Dst, true
	default:
		return ir.Reg{}, false
	}
}
