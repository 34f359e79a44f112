package ir

// Trace entry kinds, one per protocol message.
const (
	TraceSpawn        = "spawn"
	TraceRequestCode  = "request_code"
	TraceFoundCode    = "found_code"
	TraceMainResult   = "main_result"
	TraceFiberAborted = "fiber_aborted"
)

// Run describes one Application run recorded in a trace store.
type Run struct {
	ID      string `json:"id"`
	Entry   string `json:"entry"`
	Workers int64  `json:"workers"`
}

// TraceEntry is one recorded protocol message. Seq is a logical clock
// assigned by the Application, never a wall-clock timestamp.
type TraceEntry struct {
	RunID    string `json:"run_id"`
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	WorkerID int64  `json:"worker_id"`
	FiberID  int64  `json:"fiber_id"`
	Module   string `json:"module"`
	Func     string `json:"func"`
	Value    Value  `json:"-"`
	Detail   string `json:"detail,omitempty"`
}
