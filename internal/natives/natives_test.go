package natives

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

func mustLookup(t *testing.T, r *Registry, module, fn string) *code.Code {
	t.Helper()
	c, ok := r.Lookup(module, fn)
	require.True(t, ok, "%s.%s not registered", module, fn)
	return c
}

// settle runs an I/O operation to completion the way a worker's driver
// would. r, if set, is attached as resource 1.
func settle(t *testing.T, c *code.Code, r iop.Resource, args ...ir.Value) (iop.Outcome, *iop.Ctx) {
	t.Helper()
	ctx := iop.NewCtx(context.Background(), 0, 1, ir.Tuple(args))
	if r != nil {
		ctx.Attach(1, r)
	}

	out := c.IopFunc()(ctx)
	out, err := iop.NewDriver(5*time.Second, 10*time.Millisecond).Settle(context.Background(), ctx, out)
	require.NoError(t, err)
	return out, ctx
}

func resultOf(t *testing.T, out iop.Outcome) iop.Result {
	t.Helper()
	res, ok := out.(iop.Result)
	require.True(t, ok, "expected Result, got %T: %+v", out, out)
	return res
}

func newResourceOf(t *testing.T, out iop.Outcome) iop.NewResource {
	t.Helper()
	nr, ok := out.(iop.NewResource)
	require.True(t, ok, "expected NewResource, got %T: %+v", out, out)
	return nr
}

func ref() ir.RsrcRef { return ir.RsrcRef{ID: 1} }
