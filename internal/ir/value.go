package ir

import (
	"strconv"
	"strings"
)

// Value is a sealed interface over runtime values.
// Only Void, Int, Str, Bool, Tuple, Struct, Failure and RsrcRef implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
	String() string
}

// Void is the empty value. Reads of the void register produce it.
type Void struct{}

func (Void) irValue() {}

func (Void) String() string { return "void" }

// Int is a 64-bit signed integer.
type Int int64

func (Int) irValue() {}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Str is a string value.
type Str string

func (Str) irValue() {}

func (s Str) String() string { return strconv.Quote(string(s)) }

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Tuple is an ordered, positionally addressed composite.
type Tuple []Value

func (Tuple) irValue() {}

func (t Tuple) String() string {
	return "(" + joinValues(t) + ")"
}

// Struct is a named composite whose fields are addressed by position.
type Struct struct {
	Name   string
	Fields []Value
}

func (Struct) irValue() {}

func (s Struct) String() string {
	return s.Name + "(" + joinValues(s.Fields) + ")"
}

// Failure is a language-level error value. It flows through registers
// like any other value; a frame that returns one completes unsuccessfully.
type Failure struct {
	Tag string
	Msg string
}

func (Failure) irValue() {}

func (f Failure) String() string {
	if f.Msg == "" {
		return "Failure(" + f.Tag + ")"
	}
	return "Failure(" + f.Tag + ": " + f.Msg + ")"
}

// RsrcRef names a resource held in the owning fiber's resource table.
type RsrcRef struct {
	ID   int64
	Kind string
}

func (RsrcRef) irValue() {}

func (r RsrcRef) String() string {
	return "<" + r.Kind + "#" + strconv.FormatInt(r.ID, 10) + ">"
}

// Failure tags produced by the runtime itself.
const (
	TagModuleNotFound   = "module_not_found"
	TagFunctionNotFound = "function_not_found"
	TagCompileError     = "compile_error"
	TagNoMain           = "no_main"
	TagTypeMismatch     = "type_mismatch"
	TagTimeout          = "timeout"
	TagCanceled         = "canceled"
	TagIO               = "io_error"
	TagNoResource       = "no_resource"
)

// IsFailure reports whether v is a Failure.
func IsFailure(v Value) bool {
	_, ok := v.(Failure)
	return ok
}

// Clone returns a deep copy of v. Scalars are immutable and returned as is.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Tuple:
		out := make(Tuple, len(val))
		for i, item := range val {
			out[i] = Clone(item)
		}
		return out
	case Struct:
		fields := make([]Value, len(val.Fields))
		for i, item := range val.Fields {
			fields[i] = Clone(item)
		}
		return Struct{Name: val.Name, Fields: fields}
	default:
		return v
	}
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && equalSlices(av, bv)
	case Struct:
		bv, ok := b.(Struct)
		return ok && av.Name == bv.Name && equalSlices(av.Fields, bv.Fields)
	case nil:
		return b == nil
	default:
		return a == b
	}
}

// TypeName returns the runtime type name of v, as reported by prefab.type_of.
func TypeName(v Value) string {
	switch val := v.(type) {
	case Void:
		return "Void"
	case Int:
		return "Int"
	case Str:
		return "Str"
	case Bool:
		return "Bool"
	case Tuple:
		return "Tuple"
	case Struct:
		return val.Name
	case Failure:
		return "Failure"
	case RsrcRef:
		return val.Kind
	default:
		return "Unknown"
	}
}

// Text renders v for console output: strings are written raw, everything
// else uses String.
func Text(v Value) string {
	if s, ok := v.(Str); ok {
		return string(s)
	}
	if v == nil {
		return Void{}.String()
	}
	return v.String()
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func joinValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			parts[i] = "_"
			continue
		}
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
