package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/ir"
)

// Regenerate with: go test ./internal/harness -run TestGolden -update
func TestGoldenTraces(t *testing.T) {
	for _, name := range []string{
		"return_literal",
		"native_call",
		"uncaught_failure",
		"missing_entry",
		"hello_output",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			requirePass(t, result)
		})
	}
}

func TestGoldenTraces_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "native_call")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, FormatTrace(s.Name, first), FormatTrace(s.Name, second))
}

func TestFormatTrace(t *testing.T) {
	r := NewResult()
	r.Status = StatusAborted
	r.Defect = "RESOURCE_LOST"
	r.AddTrace(ir.TraceEntry{Seq: 1, Kind: ir.TraceSpawn, Module: "m", Func: "f"})
	r.AddTrace(ir.TraceEntry{Seq: 2, Kind: ir.TraceFiberAborted, FiberID: 3, Module: "m", Func: "f", Detail: "RESOURCE_LOST"})

	want := "scenario: s\n" +
		"status: aborted\n" +
		"defect: RESOURCE_LOST\n" +
		"trace:\n" +
		"  1 spawn w0 f0 m.f\n" +
		"  2 fiber_aborted w0 f3 m.f detail=RESOURCE_LOST\n"
	assert.Equal(t, want, string(FormatTrace("s", r)))
}
