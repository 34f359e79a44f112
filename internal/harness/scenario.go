package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/weft/internal/ir"
)

// DefaultEntry is the entry call used when a scenario names none.
const DefaultEntry = "test.main"

// DefaultRunID is the fixed run id scenarios are recorded under.
const DefaultRunID = "test-run-default"

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Workers is the number of Workers to start. Defaults to 1.
	Workers int `yaml:"workers,omitempty"`

	// MaxDepth overrides the per-fiber call depth limit.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Program is CUE source declaring the scenario's modules.
	Program string `yaml:"program"`

	// Entry is the qualified entry function (module.func).
	Entry string `yaml:"entry,omitempty"`

	// RunID is an optional fixed run id. Defaults to DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Expect is the required outcome of the entry call.
	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the recorded trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause specifies the expected outcome of the entry call.
type ExpectClause struct {
	// Status is one of success, uncaught_failure, no_main, aborted.
	Status string `yaml:"status"`

	// Value is the expected result. YAML scalars map to Int, Str and Bool,
	// sequences to Tuple, nulls inside sequences to Void. If absent, the
	// value is not checked.
	Value any `yaml:"value,omitempty"`

	// FailureTag is the expected tag when the result is a Failure.
	FailureTag string `yaml:"failure_tag,omitempty"`

	// Defect is the expected runtime error code when status is aborted.
	Defect string `yaml:"defect,omitempty"`

	// Output is the exact text the program must write to stdout.
	Output *string `yaml:"output,omitempty"`
}

// Assertion validates the recorded trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a message of Kind (for Func) was recorded
	// - "trace_order": Events appear in order
	// - "trace_count": Kind (for Func) appears exactly Count times
	// - "stored_count": the store holds exactly Count messages of Kind
	Type string `yaml:"type"`

	// Kind is the message kind (spawn, request_code, found_code,
	// main_result, fiber_aborted).
	Kind string `yaml:"kind,omitempty"`

	// Func optionally restricts the match to one qualified function.
	Func string `yaml:"func,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`

	// Events is the expected order (used by trace_order). Each event is
	// "kind" or "kind module.func".
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStoredCount   = "stored_count"
)

var traceKinds = map[string]bool{
	ir.TraceSpawn:        true,
	ir.TraceRequestCode:  true,
	ir.TraceFoundCode:    true,
	ir.TraceMainResult:   true,
	ir.TraceFiberAborted: true,
}

var statuses = map[string]bool{
	StatusSuccess:         true,
	StatusUncaughtFailure: true,
	StatusNoMain:          true,
	StatusAborted:         true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML and applies defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Workers == 0 {
		scenario.Workers = 1
	}
	if scenario.Entry == "" {
		scenario.Entry = DefaultEntry
	}
	if scenario.RunID == "" {
		scenario.RunID = DefaultRunID
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// EntryName splits the entry into module and function.
func (s *Scenario) EntryName() (module, fn string) {
	module, fn, _ = strings.Cut(s.Entry, ".")
	return module, fn
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Program) == "" {
		return fmt.Errorf("program is required")
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if m, f := s.EntryName(); m == "" || f == "" {
		return fmt.Errorf("entry must be module.func, got %q", s.Entry)
	}
	if s.Expect.Status == "" {
		return fmt.Errorf("expect.status is required")
	}
	if !statuses[s.Expect.Status] {
		return fmt.Errorf("expect.status: unknown status %q", s.Expect.Status)
	}
	if s.Expect.Defect != "" && s.Expect.Status != StatusAborted {
		return fmt.Errorf("expect.defect requires status %q", StatusAborted)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains, AssertTraceCount, AssertStoredCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for %s", index, a.Type)
		}
		if !traceKinds[a.Kind] {
			return fmt.Errorf("assertions[%d]: unknown message kind %q", index, a.Kind)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		if a.Type == AssertStoredCount && a.Func != "" {
			return fmt.Errorf("assertions[%d]: stored_count does not filter by func", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for j, ev := range a.Events {
			kind, _ := splitEvent(ev)
			if !traceKinds[kind] {
				return fmt.Errorf("assertions[%d].events[%d]: unknown message kind %q", index, j, kind)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// splitEvent splits "kind module.func" into its parts.
func splitEvent(ev string) (kind, fn string) {
	kind, fn, _ = strings.Cut(strings.TrimSpace(ev), " ")
	return kind, strings.TrimSpace(fn)
}
