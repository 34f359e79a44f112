package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const mainProgram = `
package lib

module: main: fn: {
	main: ops: [
		{op: "const", dst: "r0", val: 20},
		{op: "const", dst: "r1", val: 22},
		{op: "call", dst: "r2", module: "prefab", fn: "int_add", args: ["r0", "r1"]},
		{op: "return", src: "r2"},
	]
	hello: ops: [
		{op: "const", dst: "r0", val: "hello"},
		{op: "call", dst: "r1", module: "prefab", fn: "cout", args: ["r0"]},
		{op: "return", src: "r1"},
	]
	boom: ops: [
		{op: "fail", dst: "r0", tag: "boom", msg: "bad"},
		{op: "return", src: "r0"},
	]
}
`

// writeProgramDir writes a CUE program package into a fresh directory.
func writeProgramDir(t *testing.T, src string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "lib")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cue"), []byte(src), 0644))
	return dir
}

// executeCommand runs cmd with args and returns its stdout. Log output
// goes to stderr and is discarded.
func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
