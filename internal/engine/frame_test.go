package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/ir"
)

func TestExecuteStep_ReturnsLiteral(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{
		ir.OpConst{Dst: ir.R(0), Val: ir.Int(3)},
		ir.OpReturn{Src: ir.R(0)},
	}

	ev, err := f.ExecuteStep(ops, 0)
	require.NoError(t, err)
	assert.Equal(t, Complete{Success: true}, ev)
	assert.Equal(t, ir.Int(3), f.Result())
}

func TestExecuteStep_CallLeavesPC(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{
		ir.OpConst{Dst: ir.R(0), Val: ir.Tuple{ir.Int(1), ir.Int(2)}},
		ir.OpCall{Dst: ir.R(1), Module: "other", Func: "helper", Args: []ir.Reg{ir.R(0).Sub(1), ir.R(0)}},
		ir.OpReturn{Src: ir.R(1)},
	}

	ev, err := f.ExecuteStep(ops, 0)
	require.NoError(t, err)

	call, ok := ev.(Call)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "other", call.Module)
	assert.Equal(t, "helper", call.Func)
	assert.Equal(t, ir.R(1), call.Dst)
	assert.Equal(t, ir.Tuple{ir.Int(2), ir.Tuple{ir.Int(1), ir.Int(2)}}, call.Args)
	assert.Equal(t, 1, f.PC, "pc stays on the call until the callee completes")
}

func TestExecuteStep_ArgsAreCloned(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{
		ir.OpConst{Dst: ir.R(0), Val: ir.Tuple{ir.Int(1)}},
		ir.OpCall{Dst: ir.R(1), Module: "m", Func: "f", Args: []ir.Reg{ir.R(0)}},
	}
	ev, err := f.ExecuteStep(ops, 0)
	require.NoError(t, err)

	ev.(Call).Args[0].(ir.Tuple)[0] = ir.Int(99)

	v, err := f.Read(ir.R(0).Sub(0))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), v)
}

func TestExecuteStep_FailureCompletesUnsuccessfully(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{
		ir.OpFail{Dst: ir.R(0), Tag: "bad_input", Msg: "nope"},
		ir.OpReturn{Src: ir.R(0)},
	}

	ev, err := f.ExecuteStep(ops, 0)
	require.NoError(t, err)
	assert.Equal(t, Complete{Success: false}, ev)
	assert.Equal(t, ir.Failure{Tag: "bad_input", Msg: "nope"}, f.Result())
}

func TestExecuteStep_Jumps(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{
		ir.OpConst{Dst: ir.R(0), Val: ir.Bool(false)},
		ir.OpJumpIfNot{Cond: ir.R(0), Offset: 3},
		ir.OpConst{Dst: ir.R(1), Val: ir.Str("then")},
		ir.OpReturn{Src: ir.R(1)},
		ir.OpConst{Dst: ir.R(1), Val: ir.Str("else")},
		ir.OpJump{Offset: -2},
	}

	ev, err := f.ExecuteStep(ops, 0)
	require.NoError(t, err)
	assert.Equal(t, Complete{Success: true}, ev)
	assert.Equal(t, ir.Str("else"), f.Result())
}

func TestExecuteStep_ForkAdvancesPC(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{ir.OpFork{}, ir.OpReturn{Src: ir.VoidReg}}

	ev, err := f.ExecuteStep(ops, 0)
	require.NoError(t, err)
	assert.Equal(t, Fork{}, ev)
	assert.Equal(t, 1, f.PC)
}

func TestExecuteStep_QuantumYields(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{ir.OpJump{Offset: 0}}

	ev, err := f.ExecuteStep(ops, 10)
	require.NoError(t, err)
	assert.Equal(t, Fork{}, ev, "a loop without calls yields after its quantum")
	assert.Equal(t, 0, f.PC)
}

func TestExecuteStep_Defects(t *testing.T) {
	tests := []struct {
		name string
		ops  []ir.Op
		want error
	}{
		{"uninitialized read", []ir.Op{ir.OpReturn{Src: ir.R(4)}}, ir.ErrUninitializedRegister},
		{"write to param", []ir.Op{ir.OpConst{Dst: ir.P(0), Val: ir.Int(1)}}, ir.ErrBadAddress},
		{"sub-address of scalar", []ir.Op{
			ir.OpConst{Dst: ir.R(0), Val: ir.Int(1)},
			ir.OpCopy{Dst: ir.R(1), Src: ir.R(0).Sub(0)},
		}, ir.ErrNotComposite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewRootFrame("test", "main")
			_, err := f.ExecuteStep(tt.ops, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExecuteStep_FallOffEnd(t *testing.T) {
	f := NewRootFrame("test", "main")
	_, err := f.ExecuteStep([]ir.Op{ir.OpConst{Dst: ir.R(0), Val: ir.Int(1)}}, 0)
	assert.ErrorContains(t, err, "outside code")
}

func TestExecuteStep_NonBoolCondition(t *testing.T) {
	f := NewRootFrame("test", "main")
	ops := []ir.Op{
		ir.OpConst{Dst: ir.R(0), Val: ir.Int(0)},
		ir.OpJumpIfNot{Cond: ir.R(0), Offset: 1},
	}
	_, err := f.ExecuteStep(ops, 0)
	assert.ErrorContains(t, err, "not Bool")
}

func TestExecuteStep_Deterministic(t *testing.T) {
	ops := []ir.Op{
		ir.OpConst{Dst: ir.R(0), Val: ir.Int(1)},
		ir.OpTuple{Dst: ir.R(1), Items: []ir.Reg{ir.R(0), ir.P(0)}},
		ir.OpStruct{Dst: ir.R(2), Type: "Pair", Items: []ir.Reg{ir.R(1).Sub(1), ir.R(0)}},
		ir.OpReturn{Src: ir.R(2)},
	}
	frame := NewCallFrame(NewRootFrame("test", "main"), ir.R(0), "test", "pair", ir.Tuple{ir.Str("x")})

	a := frame.Clone()
	b := frame.Clone()
	evA, errA := a.ExecuteStep(ops, 0)
	evB, errB := b.ExecuteStep(ops, 0)

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, evA, evB)
	assert.Equal(t, a.PC, b.PC)
	assert.Equal(t, a.Result(), b.Result())
	assert.Equal(t, ir.Struct{Name: "Pair", Fields: []ir.Value{ir.Str("x"), ir.Int(1)}}, a.Result())
}

func TestSetResult_WritesCallerDestination(t *testing.T) {
	caller := NewRootFrame("test", "main")
	require.NoError(t, caller.Write(ir.R(0), ir.Tuple{ir.Void{}, ir.Void{}}))
	callee := NewCallFrame(caller, ir.R(0).Sub(1), "other", "helper", nil)

	require.NoError(t, callee.SetResult(ir.Int(7)))

	v, err := caller.Read(ir.R(0))
	require.NoError(t, err)
	assert.Equal(t, ir.Tuple{ir.Void{}, ir.Int(7)}, v)
}

func TestSetResult_NullParent(t *testing.T) {
	f := &Frame{Module: "m", Func: "f", regs: ir.NewRegisters(nil)}
	err := f.SetResult(ir.Int(1))
	assert.ErrorIs(t, err, ErrNoParent)
}

func TestParentKinds(t *testing.T) {
	assert.Equal(t, ParentMain, NewRootFrame("m", "f").Parent().Kind)
	assert.Equal(t, ParentRepl, NewReplFrame("m", "f").Parent().Kind)
	assert.Equal(t, "caller", ParentCaller.String())
}
