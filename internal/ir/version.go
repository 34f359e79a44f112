package ir

// Version constants for the bytecode format and runtime.
const (
	// CodeVersion is the bytecode format version folded into code fingerprints.
	CodeVersion = "1"

	// RuntimeVersion is the weft runtime version.
	RuntimeVersion = "0.1.0"
)
