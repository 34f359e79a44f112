package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

func TestBytecodeCopiesOps(t *testing.T) {
	ops := []ir.Op{ir.OpConst{Dst: ir.R(0), Val: ir.Int(1)}, ir.OpReturn{Src: ir.R(0)}}
	c := Bytecode("test.main", ops)

	ops[0] = ir.OpFork{}

	assert.Equal(t, KindBytecode, c.Kind())
	assert.Equal(t, ir.OpConst{Dst: ir.R(0), Val: ir.Int(1)}, c.Ops()[0])
	assert.Equal(t, "bytecode test.main (2 ops)", c.String())
}

func TestIopRsrcParam(t *testing.T) {
	fn := func(c *iop.Ctx) iop.Outcome { return iop.Result{Value: ir.Void{}} }

	with := Iop("tcp.send", fn, 0)
	idx, ok := with.RsrcParam()
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "iop tcp.send (rsrc p0)", with.String())

	without := Iop("tcp.connect", fn, -1)
	_, ok = without.RsrcParam()
	assert.False(t, ok)
}

func TestClosingIop(t *testing.T) {
	fn := func(c *iop.Ctx) iop.Outcome { return iop.Result{Value: ir.Void{}} }

	assert.True(t, ClosingIop("tcp.close", fn, 0).Closes())
	assert.False(t, Iop("tcp.send", fn, 0).Closes())
	assert.Equal(t, KindIop, ClosingIop("tcp.close", fn, 0).Kind())
}

func TestFingerprint(t *testing.T) {
	a := Bytecode("a.f", []ir.Op{ir.OpReturn{Src: ir.VoidReg}})
	b := Bytecode("b.g", []ir.Op{ir.OpReturn{Src: ir.VoidReg}})

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb, "fingerprint depends on instructions only")

	n := Native("prefab.int_add", func(p *iop.Params) (ir.Value, error) { return ir.Void{}, nil })
	fn, err := n.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, "native:prefab.int_add", fn)
}
