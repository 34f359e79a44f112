package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a scenario outcome and its recorded trace as stable
// text, one message per line.
func FormatTrace(name string, r *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "status: %s\n", r.Status)
	if r.Defect != "" {
		fmt.Fprintf(&buf, "defect: %s\n", r.Defect)
	}
	if r.Value != nil {
		fmt.Fprintf(&buf, "value: %s\n", r.Value)
	}
	if r.Output != "" {
		fmt.Fprintf(&buf, "output: %q\n", r.Output)
	}
	buf.WriteString("trace:\n")
	for _, e := range r.Trace {
		fmt.Fprintf(&buf, "  %d %s w%d f%d %s", e.Seq, e.Kind, e.Worker, e.Fiber, e.Func)
		if e.Detail != "" {
			fmt.Fprintf(&buf, " detail=%s", e.Detail)
		}
		if e.Value != "" {
			fmt.Fprintf(&buf, " value=%s", e.Value)
		}
		buf.WriteByte('\n')
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden comparison is only meaningful for single-worker scenarios; with
// more Workers the interleaving of messages is not fixed.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result))
}
