package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/testutil"
)

func startApp(t *testing.T, lib Library, opts ...Option) *Application {
	t.Helper()
	opts = append([]Option{WithRunIDGenerator(NewFixedGenerator("run-test"))}, opts...)
	app := NewApplication(lib, opts...)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestApplication_ReturnLiteral(t *testing.T) {
	lib := testutil.NewMapLibrary().AddOps("test", "main",
		ir.OpConst{Dst: ir.R(0), Val: ir.Int(3)},
		ir.OpReturn{Src: ir.R(0)},
	)
	rec := testutil.NewMemoryRecorder()
	app := startApp(t, lib, WithRecorder(rec))

	app.PushCall("test", "main")
	require.NoError(t, app.Run(context.Background()))

	v, err := app.WaitForResult(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(3), v)
	require.NoError(t, app.Close())

	assert.Equal(t, "run-test", app.RunID())
	require.Len(t, rec.Runs(), 1)
	assert.Equal(t, ir.Run{ID: "run-test", Entry: "test.main", Workers: 1}, rec.Runs()[0])
	assert.Equal(t, 1, rec.Count(ir.TraceSpawn))
	assert.Equal(t, 1, rec.Count(ir.TraceRequestCode))
	assert.Equal(t, 1, rec.Count(ir.TraceFoundCode))
	assert.Equal(t, 1, rec.Count(ir.TraceMainResult))
}

func TestApplication_TraceSequence(t *testing.T) {
	lib := testutil.NewMapLibrary().AddOps("test", "main",
		ir.OpConst{Dst: ir.R(0), Val: ir.Str("ok")},
		ir.OpReturn{Src: ir.R(0)},
	)
	rec := testutil.NewMemoryRecorder()
	app := startApp(t, lib, WithRecorder(rec))
	app.PushCall("test", "main")
	require.NoError(t, app.Run(context.Background()))

	_, err := app.WaitForResult(waitCtx(t))
	require.NoError(t, err)

	entries := rec.Entries()
	require.Len(t, entries, 4)
	kinds := make([]string, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, "run-test", e.RunID)
	}
	assert.Equal(t, []string{
		ir.TraceSpawn,
		ir.TraceRequestCode,
		ir.TraceFoundCode,
		ir.TraceMainResult,
	}, kinds)
	assert.Equal(t, "bytecode", entries[2].Detail)
	assert.Equal(t, ir.Str("ok"), entries[3].Value)
}

func TestApplication_TwoWorkersResolveOnce(t *testing.T) {
	lib := testutil.NewMapLibrary().
		AddOps("test", "main",
			ir.OpConst{Dst: ir.R(0), Val: ir.Int(7)},
			ir.OpCall{Dst: ir.R(1), Module: "lib", Func: "double", Args: []ir.Reg{ir.R(0)}},
			ir.OpReturn{Src: ir.R(1)},
		).
		AddOps("lib", "double",
			ir.OpTuple{Dst: ir.R(0), Items: []ir.Reg{ir.P(0), ir.P(0)}},
			ir.OpReturn{Src: ir.R(0)},
		)
	app := startApp(t, lib, WithWorkers(2))
	assert.Equal(t, 2, app.WorkerCount())

	app.PushCall("test", "main")
	app.PushCall("test", "main")
	require.NoError(t, app.Run(context.Background()))

	ctx := waitCtx(t)
	workers := make(map[int64]bool)
	for i := 0; i < 2; i++ {
		r, err := app.Wait(ctx)
		require.NoError(t, err)
		require.NoError(t, r.Err)
		assert.Equal(t, ir.Tuple{ir.Int(7), ir.Int(7)}, r.Value)
		workers[r.FiberID] = true
	}
	assert.Len(t, workers, 2, "fiber ids are unique across workers")

	assert.Equal(t, 1, lib.Resolves("test", "main"))
	assert.Equal(t, 1, lib.Resolves("lib", "double"))
}

func TestApplication_DistinctEntriesPerWorker(t *testing.T) {
	lib := testutil.NewMapLibrary().
		AddOps("alpha", "main",
			ir.OpCall{Dst: ir.R(0), Module: "alpha", Func: "value"},
			ir.OpReturn{Src: ir.R(0)},
		).
		AddOps("alpha", "value",
			ir.OpConst{Dst: ir.R(0), Val: ir.Str("from alpha")},
			ir.OpReturn{Src: ir.R(0)},
		).
		AddOps("beta", "main",
			ir.OpCall{Dst: ir.R(0), Module: "beta", Func: "value"},
			ir.OpReturn{Src: ir.R(0)},
		).
		AddOps("beta", "value",
			ir.OpConst{Dst: ir.R(0), Val: ir.Str("from beta")},
			ir.OpReturn{Src: ir.R(0)},
		)
	rec := testutil.NewMemoryRecorder()
	app := startApp(t, lib, WithWorkers(2), WithRecorder(rec))

	// Entry calls are spread round-robin: alpha on worker 0, beta on worker 1.
	app.PushCall("alpha", "main")
	app.PushCall("beta", "main")
	require.NoError(t, app.Run(context.Background()))

	ctx := waitCtx(t)
	values := make(map[string]ir.Value)
	for i := 0; i < 2; i++ {
		r, err := app.Wait(ctx)
		require.NoError(t, err)
		require.NoError(t, r.Err)
		values[r.Module] = r.Value
	}
	assert.Equal(t, ir.Str("from alpha"), values["alpha"])
	assert.Equal(t, ir.Str("from beta"), values["beta"])

	type request struct {
		fiber  int64
		module string
		fn     string
	}
	requester := make(map[request]int64)
	spawnedOn := make(map[string]int64)
	found := 0
	for _, e := range rec.Entries() {
		key := request{e.FiberID, e.Module, e.Func}
		switch e.Kind {
		case ir.TraceSpawn:
			spawnedOn[e.Module] = e.WorkerID
		case ir.TraceRequestCode:
			requester[key] = e.WorkerID
		case ir.TraceFoundCode:
			w, ok := requester[key]
			require.True(t, ok, "found_code for %s.%s without a request", key.module, key.fn)
			assert.Equal(t, w, e.WorkerID, "found_code for %s.%s answered to the requesting worker", key.module, key.fn)
			found++
		}
	}
	assert.Equal(t, map[string]int64{"alpha": 0, "beta": 1}, spawnedOn)
	assert.Equal(t, 4, found)
	for key, w := range requester {
		assert.Equal(t, spawnedOn[key.module], w, "%s.%s requested by the worker running %s", key.module, key.fn, key.module)
	}
}

func TestApplication_NoEntryCall(t *testing.T) {
	app := startApp(t, testutil.NewMapLibrary())
	require.NoError(t, app.Run(context.Background()))

	r, err := app.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StatusNoMain, r.Status())
}

func TestApplication_MissingEntry(t *testing.T) {
	app := startApp(t, testutil.NewMapLibrary())
	app.PushCall("test", "main")
	require.NoError(t, app.Run(context.Background()))

	r, err := app.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, r.NoMain)
	assert.Equal(t, StatusNoMain, r.Status())
}

func TestApplication_ReturnedNoMainTagIsUncaught(t *testing.T) {
	lib := testutil.NewMapLibrary().AddOps("test", "main",
		ir.OpFail{Dst: ir.R(0), Tag: ir.TagNoMain, Msg: "not really"},
		ir.OpReturn{Src: ir.R(0)},
	)
	app := startApp(t, lib)
	app.PushCall("test", "main")
	require.NoError(t, app.Run(context.Background()))

	r, err := app.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.False(t, r.NoMain, "the entry function ran")
	assert.Equal(t, StatusUncaughtFailure, r.Status())
}

func TestApplication_UncaughtFailure(t *testing.T) {
	lib := testutil.NewMapLibrary().AddOps("test", "main",
		ir.OpFail{Dst: ir.R(0), Tag: "bad_input", Msg: "nope"},
		ir.OpReturn{Src: ir.R(0)},
	)
	app := startApp(t, lib)
	app.PushCall("test", "main")
	require.NoError(t, app.Run(context.Background()))

	v, err := app.WaitForResult(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StatusUncaughtFailure, StatusOf(v))
}

func TestApplication_DefectIsReturnedAsError(t *testing.T) {
	lib := testutil.NewMapLibrary().AddOps("test", "main",
		ir.OpCall{Dst: ir.R(0), Module: "test", Func: "main"},
		ir.OpReturn{Src: ir.R(0)},
	)
	rec := testutil.NewMemoryRecorder()
	app := startApp(t, lib, WithMaxDepth(3), WithRecorder(rec))
	app.PushCall("test", "main")
	require.NoError(t, app.Run(context.Background()))

	v, err := app.WaitForResult(waitCtx(t))
	assert.Nil(t, v)
	assert.True(t, IsStackOverflow(err))
	assert.Equal(t, 1, rec.Count(ir.TraceFiberAborted))
}

func TestApplication_PushCallAfterRun(t *testing.T) {
	lib := testutil.NewMapLibrary().AddOps("test", "main",
		ir.OpConst{Dst: ir.R(0), Val: ir.Bool(true)},
		ir.OpReturn{Src: ir.R(0)},
	)
	app := startApp(t, lib)
	require.NoError(t, app.Run(context.Background()))

	app.PushCall("test", "main")
	v, err := app.WaitForResult(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, ir.Bool(true), v)
}

func TestApplication_WaitBeforeRun(t *testing.T) {
	app := NewApplication(testutil.NewMapLibrary())

	_, err := app.WaitForResult(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.NoError(t, app.Close())
}

func TestApplication_RunTwice(t *testing.T) {
	app := startApp(t, testutil.NewMapLibrary())
	require.NoError(t, app.Run(context.Background()))
	assert.Error(t, app.Run(context.Background()))
}
