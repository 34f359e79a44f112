// Package code defines the executable forms a function can take.
package code

import (
	"errors"
	"fmt"

	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// Resolution errors. Libraries wrap these so callers can map them to
// failure tags.
var (
	ErrModuleNotFound   = errors.New("module not found")
	ErrFunctionNotFound = errors.New("function not found")
)

// Kind distinguishes the executable forms.
type Kind int

const (
	KindBytecode Kind = iota
	KindNative
	KindIop
)

func (k Kind) String() string {
	switch k {
	case KindBytecode:
		return "bytecode"
	case KindNative:
		return "native"
	case KindIop:
		return "iop"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// NativeFunc runs synchronously on the worker. Language-level errors are
// returned as ir.Failure values; a Go error is an interpreter defect.
type NativeFunc func(p *iop.Params) (ir.Value, error)

// IopFunc starts an I/O operation. It may complete synchronously (Result,
// NewResource) or defer to the driver (Async, Blocking).
type IopFunc func(c *iop.Ctx) iop.Outcome

// Code is an immutable executable function body, shared by every frame
// that runs it.
type Code struct {
	kind      Kind
	name      string
	ops       []ir.Op
	native    NativeFunc
	iop       IopFunc
	rsrcParam int
	closes    bool
}

// Bytecode wraps a compiled instruction sequence.
func Bytecode(name string, ops []ir.Op) *Code {
	cp := make([]ir.Op, len(ops))
	copy(cp, ops)
	return &Code{kind: KindBytecode, name: name, ops: cp, rsrcParam: -1}
}

// Native wraps a synchronous host function.
func Native(name string, fn NativeFunc) *Code {
	return &Code{kind: KindNative, name: name, native: fn, rsrcParam: -1}
}

// Iop wraps an I/O operation. rsrcParam is the index of the argument that
// names the resource the operation borrows, or -1 for none.
func Iop(name string, fn IopFunc, rsrcParam int) *Code {
	if rsrcParam < 0 {
		rsrcParam = -1
	}
	return &Code{kind: KindIop, name: name, iop: fn, rsrcParam: rsrcParam}
}

// ClosingIop wraps an I/O operation that consumes its resource. Other
// operations must hand their resource back.
func ClosingIop(name string, fn IopFunc, rsrcParam int) *Code {
	c := Iop(name, fn, rsrcParam)
	c.closes = true
	return c
}

func (c *Code) Kind() Kind   { return c.kind }
func (c *Code) Name() string { return c.name }

// Ops returns the instruction sequence. Callers must not modify it.
func (c *Code) Ops() []ir.Op { return c.ops }

func (c *Code) NativeFunc() NativeFunc { return c.native }
func (c *Code) IopFunc() IopFunc       { return c.iop }

// RsrcParam returns the index of the resource argument of an Iop.
func (c *Code) RsrcParam() (int, bool) {
	return c.rsrcParam, c.rsrcParam >= 0
}

// Closes reports whether the operation consumes its resource.
func (c *Code) Closes() bool { return c.closes }

// Fingerprint returns a content hash for bytecode, or the kind and name for
// host functions.
func (c *Code) Fingerprint() (string, error) {
	if c.kind != KindBytecode {
		return c.kind.String() + ":" + c.name, nil
	}
	return ir.Fingerprint(c.ops)
}

func (c *Code) String() string {
	switch c.kind {
	case KindBytecode:
		return fmt.Sprintf("bytecode %s (%d ops)", c.name, len(c.ops))
	case KindIop:
		if c.rsrcParam >= 0 {
			return fmt.Sprintf("iop %s (rsrc p%d)", c.name, c.rsrcParam)
		}
		return "iop " + c.name
	default:
		return c.kind.String() + " " + c.name
	}
}
