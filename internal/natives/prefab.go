package natives

import (
	"fmt"
	"io"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// ModulePrefab is the built-in arithmetic, comparison and console module.
const ModulePrefab = "prefab"

func (r *Registry) registerPrefab() {
	r.addNative("int_add", intBinary(func(a, b int64) ir.Value { return ir.Int(a + b) }))
	r.addNative("int_sub", intBinary(func(a, b int64) ir.Value { return ir.Int(a - b) }))
	r.addNative("int_mult", intBinary(func(a, b int64) ir.Value { return ir.Int(a * b) }))
	r.addNative("less_than", intBinary(func(a, b int64) ir.Value { return ir.Bool(a < b) }))
	r.addNative("less_than_equal", intBinary(func(a, b int64) ir.Value { return ir.Bool(a <= b) }))
	r.addNative("greater_than", intBinary(func(a, b int64) ir.Value { return ir.Bool(a > b) }))
	r.addNative("greater_than_equal", intBinary(func(a, b int64) ir.Value { return ir.Bool(a >= b) }))

	r.addNative("int_negate", func(a *args) ir.Value {
		return ir.Int(-a.intArg(0))
	})
	r.addNative("bool_not", func(a *args) ir.Value {
		return ir.Bool(!a.boolArg(0))
	})
	r.addNative("bool_xor", func(a *args) ir.Value {
		x, y := a.boolArg(0), a.boolArg(1)
		return ir.Bool(x != y)
	})
	r.addNative("equal", func(a *args) ir.Value {
		x, y := a.value(0), a.value(1)
		return ir.Bool(ir.Equal(x, y))
	})
	r.addNative("str_concat", func(a *args) ir.Value {
		x, y := a.strArg(0), a.strArg(1)
		return ir.Str(x + y)
	})
	r.addNative("type_of", func(a *args) ir.Value {
		v := a.value(0)
		if v == nil {
			return nil
		}
		return ir.Str(ir.TypeName(v))
	})
	r.addNative("cout", printer(r.stdout))
	r.addNative("cerr", printer(r.stderr))
}

// addNative registers a prefab native. fn's result is ignored when an
// argument was missing or ill-typed.
func (r *Registry) addNative(name string, fn func(a *args) ir.Value) {
	qname := qualified(ModulePrefab, name)
	r.add(ModulePrefab, code.Native(qname, func(p *iop.Params) (ir.Value, error) {
		a := newArgs(qname, p)
		v := fn(a)
		if !a.ok() {
			return a.outcome()
		}
		return v, nil
	}))
}

func intBinary(op func(a, b int64) ir.Value) func(a *args) ir.Value {
	return func(a *args) ir.Value {
		x, y := a.intArg(0), a.intArg(1)
		return op(x, y)
	}
}

// printer writes its argument's text and a newline. Str arguments print
// without quotes.
func printer(w io.Writer) func(a *args) ir.Value {
	return func(a *args) ir.Value {
		v := a.value(0)
		if v == nil {
			return nil
		}
		if _, err := fmt.Fprintln(w, ir.Text(v)); err != nil {
			return ioFailure("print", err)
		}
		return ir.Void{}
	}
}
