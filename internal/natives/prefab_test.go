package natives

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

func callNative(t *testing.T, r *Registry, fn string, args ...ir.Value) (ir.Value, error) {
	t.Helper()
	c := mustLookup(t, r, ModulePrefab, fn)
	return c.NativeFunc()(iop.NewParams(ir.Tuple(args)))
}

func TestPrefab(t *testing.T) {
	r := New()
	tests := []struct {
		fn   string
		args []ir.Value
		want ir.Value
	}{
		{"int_add", []ir.Value{ir.Int(2), ir.Int(3)}, ir.Int(5)},
		{"int_sub", []ir.Value{ir.Int(2), ir.Int(3)}, ir.Int(-1)},
		{"int_mult", []ir.Value{ir.Int(4), ir.Int(3)}, ir.Int(12)},
		{"int_negate", []ir.Value{ir.Int(4)}, ir.Int(-4)},
		{"bool_not", []ir.Value{ir.Bool(true)}, ir.Bool(false)},
		{"bool_xor", []ir.Value{ir.Bool(true), ir.Bool(true)}, ir.Bool(false)},
		{"bool_xor", []ir.Value{ir.Bool(true), ir.Bool(false)}, ir.Bool(true)},
		{"less_than", []ir.Value{ir.Int(1), ir.Int(2)}, ir.Bool(true)},
		{"less_than_equal", []ir.Value{ir.Int(2), ir.Int(2)}, ir.Bool(true)},
		{"greater_than", []ir.Value{ir.Int(1), ir.Int(2)}, ir.Bool(false)},
		{"greater_than_equal", []ir.Value{ir.Int(3), ir.Int(2)}, ir.Bool(true)},
		{"equal", []ir.Value{ir.Str("a"), ir.Str("a")}, ir.Bool(true)},
		{"equal", []ir.Value{ir.Int(1), ir.Str("1")}, ir.Bool(false)},
		{"str_concat", []ir.Value{ir.Str("foo"), ir.Str("bar")}, ir.Str("foobar")},
		{"type_of", []ir.Value{ir.Struct{Name: "Point"}}, ir.Str("Point")},
		{"type_of", []ir.Value{ir.Int(1)}, ir.Str("Int")},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			got, err := callNative(t, r, tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrefabTypeMismatchIsFailure(t *testing.T) {
	got, err := callNative(t, New(), "int_add", ir.Int(1), ir.Str("2"))
	require.NoError(t, err, "wrong argument kinds are not defects")

	f, ok := got.(ir.Failure)
	require.True(t, ok)
	assert.Equal(t, ir.TagTypeMismatch, f.Tag)
	assert.Contains(t, f.Msg, "argument 1 is Str, want Int")
}

func TestPrefabMissingArgumentIsFailure(t *testing.T) {
	got, err := callNative(t, New(), "str_concat", ir.Str("only"))
	require.NoError(t, err)
	assert.Equal(t, ir.TagTypeMismatch, got.(ir.Failure).Tag)
}

func TestPrefabTakenArgumentIsDefect(t *testing.T) {
	c := mustLookup(t, New(), ModulePrefab, "int_add")
	p := iop.NewParams(ir.Tuple{ir.Int(1), ir.Int(2)})
	_, err := p.Take(0)
	require.NoError(t, err)

	_, err = c.NativeFunc()(p)
	assert.ErrorIs(t, err, iop.ErrParamTaken)
}

func TestPrefabConsole(t *testing.T) {
	var out, errOut bytes.Buffer
	r := New(WithStdout(&out), WithStderr(&errOut))

	v, err := callNative(t, r, "cout", ir.Str("hello"))
	require.NoError(t, err)
	assert.Equal(t, ir.Void{}, v)

	_, err = callNative(t, r, "cout", ir.Tuple{ir.Int(1), ir.Str("x")})
	require.NoError(t, err)

	_, err = callNative(t, r, "cerr", ir.Int(7))
	require.NoError(t, err)

	assert.Equal(t, "hello\n(1, \"x\")\n", out.String())
	assert.Equal(t, "7\n", errOut.String())
}
