package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/engine"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/store"
)

func TestRunReturnsValue(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "42\n")
}

func TestRunWithWorkers(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), "--workers", "4", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "42\n")
}

func TestRunVoidPrintsOnlyOutput(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), "--entry", "main.hello", dir)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestRunUncaughtFailure(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), "-e", "main.boom", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "uncaught failure")
	assert.Contains(t, err.Error(), "boom")
}

func TestRunNoMain(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), "-e", "main.nope", dir)
	require.Error(t, err)
	assert.Equal(t, ExitNoMain, GetExitCode(err))
	assert.Contains(t, err.Error(), "function not found: main.nope")
}

func TestRunInvalidEntry(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), "-e", "main", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "want module.func")
}

func TestRunNonExistentProgramDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nonexistent")

	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "program directory not found")
}

func TestRunEmptyProgramDir(t *testing.T) {
	_, err := executeCommand(NewRunCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files found")
}

func TestRunJSONOutput(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunOutput `json:"data"`
		RunID  string    `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "success", resp.Data.Status)
	assert.Equal(t, "42", resp.Data.Value)
	assert.Equal(t, DefaultEntry, resp.Data.Entry)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, resp.RunID, resp.Data.RunID)
}

func TestRunJSONFailure(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)

	out, err := executeCommand(NewRunCommand(&RootOptions{Format: "json"}), "-e", "main.boom", dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "boom", resp.Error.Code)
	assert.Equal(t, "bad", resp.Error.Message)
}

func TestRunRecordsTrace(t *testing.T) {
	dir := writeProgramDir(t, mainProgram)
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Entry:       DefaultEntry,
		TraceDB:     dbPath,
		RunIDs:      engine.NewFixedGenerator("run-fixed"),
	}

	require.NoError(t, runEntry(opts, []string{dir}, cmd))
	assert.Contains(t, buf.String(), "42")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, "run-fixed")
	require.NoError(t, err)
	assert.Equal(t, DefaultEntry, run.Entry)
	assert.Equal(t, int64(1), run.Workers)

	results, err := st.CountKind(ctx, "run-fixed", ir.TraceMainResult)
	require.NoError(t, err)
	assert.Equal(t, 1, results)

	entries, err := st.ReadTrace(ctx, "run-fixed")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, ir.TraceMainResult, last.Kind)
	assert.Equal(t, ir.Int(42), last.Value)
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{})

	assert.Contains(t, cmd.Long, "Exit codes")
	assert.Contains(t, cmd.Long, "entry function could not be resolved")
	assert.Contains(t, cmd.Long, "weft run ./lib")
}
