package harness

import (
	"github.com/roach88/weft/internal/ir"
)

// Status names reported in Result.Status.
const (
	StatusSuccess         = "success"
	StatusUncaughtFailure = "uncaught_failure"
	StatusNoMain          = "no_main"
	StatusAborted         = "aborted"
)

// TraceEvent is one recorded protocol message in display form.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Worker int64  `json:"worker"`
	Fiber  int64  `json:"fiber"`
	Func   string `json:"func"`
	Value  string `json:"value,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if the expect clause and every assertion matched.
	Pass bool `json:"pass"`

	// Status classifies the entry call's outcome.
	Status string `json:"status"`

	// Value is the entry call's result. Nil when the fiber was aborted.
	Value ir.Value `json:"-"`

	// Defect is the runtime error code when Status is aborted.
	Defect string `json:"defect,omitempty"`

	// Output is everything the program wrote to its stdout.
	Output string `json:"output,omitempty"`

	// Trace holds the recorded protocol messages ordered by seq.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a recorded message to the trace.
func (r *Result) AddTrace(e ir.TraceEntry) {
	ev := TraceEvent{
		Seq:    e.Seq,
		Kind:   e.Kind,
		Worker: e.WorkerID,
		Fiber:  e.FiberID,
		Func:   ir.QualifiedName(e.Module, e.Func),
		Detail: e.Detail,
	}
	if e.Value != nil {
		ev.Value = e.Value.String()
	}
	r.Trace = append(r.Trace, ev)
}
