package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/weft/internal/engine"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/library"
	"github.com/roach88/weft/internal/natives"
	"github.com/roach88/weft/internal/store"
)

// DefaultTimeout bounds a single scenario execution.
const DefaultTimeout = 10 * time.Second

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory trace store
//  2. Load the scenario program into a library over the native modules
//  3. Run the entry call on an Application recording into the store
//  4. Read the recorded trace back from the store
//  5. Check the expect clause and evaluate assertions
//
// A non-nil error means the scenario could not be executed at all; a
// scenario that ran but did not match is reported through Result.Pass.
func Run(scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	var stdout bytes.Buffer
	lib := library.New(natives.New(natives.WithStdout(&stdout)))
	if err := lib.LoadSource(scenario.Name+".cue", scenario.Program); err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}

	opts := []engine.Option{
		engine.WithWorkers(scenario.Workers),
		engine.WithRecorder(st),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(scenario.RunID)),
	}
	if scenario.MaxDepth > 0 {
		opts = append(opts, engine.WithMaxDepth(scenario.MaxDepth))
	}
	app := engine.NewApplication(lib, opts...)

	module, fn := scenario.EntryName()
	app.PushCall(module, fn)
	if err := app.Run(ctx); err != nil {
		return nil, fmt.Errorf("failed to start application: %w", err)
	}

	outcome, waitErr := app.Wait(ctx)
	if closeErr := app.Close(); closeErr != nil && waitErr == nil {
		waitErr = closeErr
	}
	if waitErr != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, waitErr)
	}

	result := NewResult()
	result.Output = stdout.String()
	classify(result, outcome)

	entries, err := st.ReadTrace(ctx, scenario.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, e := range entries {
		result.AddTrace(e)
	}

	slog.Debug("scenario executed",
		"scenario", scenario.Name,
		"status", result.Status,
		"messages", len(result.Trace),
	)

	for _, errMsg := range checkExpect(result, scenario.Expect) {
		result.AddError(errMsg)
	}
	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		RunID: scenario.RunID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// classify fills Status, Value and Defect from the entry call's outcome.
func classify(r *Result, outcome engine.Result) {
	if outcome.Err != nil {
		r.Status = StatusAborted
		r.Defect = string(engine.ErrorCode(outcome.Err))
		return
	}
	r.Value = outcome.Value
	switch outcome.Status() {
	case engine.StatusSuccess:
		r.Status = StatusSuccess
	case engine.StatusNoMain:
		r.Status = StatusNoMain
	default:
		r.Status = StatusUncaughtFailure
	}
}

// checkExpect compares the outcome with the expect clause.
func checkExpect(r *Result, expect ExpectClause) []string {
	var errs []string
	if r.Status != expect.Status {
		errs = append(errs, fmt.Sprintf("status: expected %s, got %s", expect.Status, r.Status))
	}
	if expect.Defect != "" && r.Defect != expect.Defect {
		errs = append(errs, fmt.Sprintf("defect: expected %s, got %q", expect.Defect, r.Defect))
	}
	if expect.FailureTag != "" {
		f, ok := r.Value.(ir.Failure)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("failure_tag: expected %s, got non-failure %v", expect.FailureTag, r.Value))
		case f.Tag != expect.FailureTag:
			errs = append(errs, fmt.Sprintf("failure_tag: expected %s, got %s", expect.FailureTag, f.Tag))
		}
	}
	if expect.Value != nil {
		want, err := convertToValue(expect.Value)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("value: %v", err))
		case r.Value == nil || !ir.Equal(want, r.Value):
			errs = append(errs, fmt.Sprintf("value: expected %v, got %v", want, r.Value))
		}
	}
	if expect.Output != nil && r.Output != *expect.Output {
		errs = append(errs, fmt.Sprintf("output: expected %q, got %q", *expect.Output, r.Output))
	}
	return errs
}

// convertToValue converts a YAML-parsed value to an ir.Value.
// Floats are rejected: the runtime has no float type.
func convertToValue(val any) (ir.Value, error) {
	switch v := val.(type) {
	case nil:
		return ir.Void{}, nil
	case string:
		return ir.Str(v), nil
	case int:
		return ir.Int(int64(v)), nil
	case int64:
		return ir.Int(v), nil
	case float64:
		if v == float64(int64(v)) {
			return ir.Int(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are not runtime values: %v", v)
	case bool:
		return ir.Bool(v), nil
	case []any:
		items := make(ir.Tuple, len(v))
		for i, elem := range v {
			item, err := convertToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = item
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}

// errScenarioFailed is returned by RunFile when a scenario ran but failed.
var errScenarioFailed = errors.New("scenario failed")

// RunFile loads and runs a scenario file. It returns the result even when
// the scenario failed, together with an error wrapping errScenarioFailed.
func RunFile(path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(scenario)
	if err != nil {
		return scenario, nil, err
	}
	if !result.Pass {
		return scenario, result, fmt.Errorf("%w: %s", errScenarioFailed, scenario.Name)
	}
	return scenario, result, nil
}

// IsScenarioFailure reports whether err means a scenario ran and failed, as
// opposed to one that could not run.
func IsScenarioFailure(err error) bool {
	return errors.Is(err, errScenarioFailed)
}
