package natives

import (
	"errors"
	"fmt"

	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// args takes and type-checks positional parameters. The first problem
// sticks: later accessors return zero values.
type args struct {
	name string
	p    *iop.Params
	fail *ir.Failure
	err  error
}

func newArgs(name string, p *iop.Params) *args {
	return &args{name: name, p: p}
}

func (a *args) ok() bool { return a.fail == nil && a.err == nil }

// outcome returns the failure for a native. Missing or ill-typed arguments
// are failures; anything else is a defect.
func (a *args) outcome() (ir.Value, error) {
	if a.err != nil {
		return nil, a.err
	}
	return *a.fail, nil
}

// failure returns the problem as a Failure value, for I/O operations.
func (a *args) failure() ir.Failure {
	if a.err != nil {
		return ir.Failure{Tag: ir.TagTypeMismatch, Msg: fmt.Sprintf("%s: %v", a.name, a.err)}
	}
	return *a.fail
}

func (a *args) value(i int) ir.Value {
	if !a.ok() {
		return nil
	}
	v, err := a.p.Take(i)
	if errors.Is(err, iop.ErrParamMissing) {
		a.fail = &ir.Failure{
			Tag: ir.TagTypeMismatch,
			Msg: fmt.Sprintf("%s: missing argument %d (have %d)", a.name, i, a.p.Len()),
		}
		return nil
	}
	if err != nil {
		a.err = fmt.Errorf("%s: %w", a.name, err)
		return nil
	}
	return v
}

func (a *args) mismatch(i int, want string, got ir.Value) {
	a.fail = &ir.Failure{
		Tag: ir.TagTypeMismatch,
		Msg: fmt.Sprintf("%s: argument %d is %s, want %s", a.name, i, ir.TypeName(got), want),
	}
}

func (a *args) intArg(i int) int64 {
	v := a.value(i)
	if v == nil {
		return 0
	}
	n, ok := v.(ir.Int)
	if !ok {
		a.mismatch(i, "Int", v)
		return 0
	}
	return int64(n)
}

func (a *args) strArg(i int) string {
	v := a.value(i)
	if v == nil {
		return ""
	}
	s, ok := v.(ir.Str)
	if !ok {
		a.mismatch(i, "Str", v)
		return ""
	}
	return string(s)
}

func (a *args) boolArg(i int) bool {
	v := a.value(i)
	if v == nil {
		return false
	}
	b, ok := v.(ir.Bool)
	if !ok {
		a.mismatch(i, "Bool", v)
		return false
	}
	return bool(b)
}

func ioFailure(name string, err error) ir.Failure {
	return ir.Failure{Tag: ir.TagIO, Msg: fmt.Sprintf("%s: %v", name, err)}
}
