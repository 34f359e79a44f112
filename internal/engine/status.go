package engine

import "github.com/roach88/weft/internal/ir"

// Status classifies the value an entry call produced.
type Status int

const (
	// StatusSuccess means the entry call returned a non-failure value.
	StatusSuccess Status = iota
	// StatusUncaughtFailure means a Failure propagated to the root frame.
	StatusUncaughtFailure
	// StatusNoMain means the entry function could not be resolved, or no
	// entry call was made. Only a Result carries it.
	StatusNoMain
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUncaughtFailure:
		return "uncaught_failure"
	case StatusNoMain:
		return "no_main"
	default:
		return "unknown"
	}
}

// StatusOf classifies a value that an entry call returned.
func StatusOf(v ir.Value) Status {
	if ir.IsFailure(v) {
		return StatusUncaughtFailure
	}
	return StatusSuccess
}

// Status classifies r. A program that returns a no_main Failure of its
// own still ran, so only the NoMain flag yields StatusNoMain.
func (r Result) Status() Status {
	if r.NoMain {
		return StatusNoMain
	}
	return StatusOf(r.Value)
}
