package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/ir"
)

func TestBeginRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := ir.Run{ID: "run-1", Entry: "test.main", Workers: 2}
	require.NoError(t, s.BeginRun(ctx, run))
	require.NoError(t, s.BeginRun(ctx, run), "duplicate run is ignored")

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ir.Run{run}, runs)
}

func TestRecord_StoresEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	e := createTestEntry("run-1", 1, ir.TraceMainResult)
	e.Value = ir.Tuple{ir.Int(7), ir.Str("seven")}
	e.Detail = "ok"
	require.NoError(t, s.Record(ctx, e))

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
}

func TestRecord_NilValueStoredAsNull(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	require.NoError(t, s.Record(ctx, createTestEntry("run-1", 1, ir.TraceSpawn)))

	var isNull bool
	err := s.db.QueryRow("SELECT value IS NULL FROM messages WHERE seq = 1").Scan(&isNull)
	require.NoError(t, err)
	assert.True(t, isNull)

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, got[0].Value)
}

func TestRecord_DuplicateSeqIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	first := createTestEntry("run-1", 1, ir.TraceSpawn)
	second := createTestEntry("run-1", 1, ir.TraceRequestCode)
	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, second))

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ir.TraceSpawn, got[0].Kind, "first write wins")
}

func TestRecord_UnknownRunRejected(t *testing.T) {
	s := createTestStore(t)

	err := s.Record(context.Background(), createTestEntry("missing", 1, ir.TraceSpawn))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record spawn")
}

func TestRecord_FailureValue(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	e := createTestEntry("run-1", 1, ir.TraceFiberAborted)
	e.Value = ir.Failure{Tag: ir.TagTimeout, Msg: "recv"}
	require.NoError(t, s.Record(ctx, e))

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ir.Equal(e.Value, got[0].Value))
}
