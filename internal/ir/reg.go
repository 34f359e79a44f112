package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Register addressing errors.
var (
	// ErrUninitializedRegister is returned when reading a slot that was never written.
	ErrUninitializedRegister = errors.New("uninitialized register")

	// ErrNotComposite is returned when a sub-address descends into a scalar
	// or into a composite that does not exist yet.
	ErrNotComposite = errors.New("not a composite value")

	// ErrBadAddress is returned for out-of-range indexes and malformed addresses.
	ErrBadAddress = errors.New("bad register address")
)

// RegClass selects the storage area a Reg addresses.
type RegClass uint8

const (
	// RegVoid discards writes and reads as Void.
	RegVoid RegClass = iota
	// RegLocal addresses a frame-local register slot.
	RegLocal
	// RegParam addresses an item of the frame's parameter tuple.
	RegParam
)

// Reg is a register address: a primary slot plus an optional path of
// positional indexes into nested composites.
type Reg struct {
	Class RegClass
	Slot  int
	Path  []int
}

// VoidReg is the discard register.
var VoidReg = Reg{Class: RegVoid}

// R addresses local register n.
func R(n int) Reg { return Reg{Class: RegLocal, Slot: n} }

// P addresses parameter n.
func P(n int) Reg { return Reg{Class: RegParam, Slot: n} }

// Sub returns the address of item i inside the composite r addresses.
func (r Reg) Sub(i int) Reg {
	path := make([]int, len(r.Path), len(r.Path)+1)
	copy(path, r.Path)
	return Reg{Class: r.Class, Slot: r.Slot, Path: append(path, i)}
}

// IsVoid reports whether r is the discard register.
func (r Reg) IsVoid() bool { return r.Class == RegVoid }

// IsParam reports whether r addresses the parameter tuple.
func (r Reg) IsParam() bool { return r.Class == RegParam }

// String renders r in the assembly syntax accepted by ParseReg.
func (r Reg) String() string {
	var sb strings.Builder
	switch r.Class {
	case RegVoid:
		return "void"
	case RegParam:
		sb.WriteString("p")
	default:
		sb.WriteString("r")
	}
	sb.WriteString(strconv.Itoa(r.Slot))
	for _, i := range r.Path {
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(i))
	}
	return sb.String()
}

// ParseReg parses "void", "rN", "pN", and either form followed by ".i"
// sub-addresses (e.g. "r0.1.2").
func ParseReg(s string) (Reg, error) {
	if s == "void" {
		return VoidReg, nil
	}
	if len(s) < 2 {
		return Reg{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}

	var r Reg
	switch s[0] {
	case 'r':
		r.Class = RegLocal
	case 'p':
		r.Class = RegParam
	default:
		return Reg{}, fmt.Errorf("%w: %q must start with r, p or be void", ErrBadAddress, s)
	}

	parts := strings.Split(s[1:], ".")
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Reg{}, fmt.Errorf("%w: %q: invalid index %q", ErrBadAddress, s, part)
		}
		if i == 0 {
			r.Slot = n
			continue
		}
		r.Path = append(r.Path, n)
	}
	return r, nil
}

// Registers is the register file of one frame: growable local slots plus
// the read-only parameter tuple the frame was called with.
type Registers struct {
	slots  []Value
	params Tuple
}

// NewRegisters creates a register file over params. The caller transfers
// ownership of params.
func NewRegisters(params Tuple) *Registers {
	if params == nil {
		params = Tuple{}
	}
	return &Registers{params: params}
}

// Params returns the parameter tuple.
func (rs *Registers) Params() Tuple { return rs.params }

// Read returns the value at r. The returned value aliases register storage;
// Clone it before handing it to another frame.
func (rs *Registers) Read(r Reg) (Value, error) {
	var base Value
	switch r.Class {
	case RegVoid:
		return Void{}, nil
	case RegParam:
		if r.Slot >= len(rs.params) {
			return nil, fmt.Errorf("%w: %s (have %d params)", ErrBadAddress, r, len(rs.params))
		}
		base = rs.params[r.Slot]
	case RegLocal:
		if r.Slot >= len(rs.slots) || rs.slots[r.Slot] == nil {
			return nil, fmt.Errorf("%w: %s", ErrUninitializedRegister, r)
		}
		base = rs.slots[r.Slot]
	default:
		return nil, fmt.Errorf("%w: class %d", ErrBadAddress, r.Class)
	}

	cur := base
	for depth, idx := range r.Path {
		elems, err := items(cur)
		if err != nil {
			return nil, fmt.Errorf("%s at depth %d: %w", r, depth, err)
		}
		if idx >= len(elems) {
			return nil, fmt.Errorf("%w: %s index %d out of range (len %d)", ErrBadAddress, r, idx, len(elems))
		}
		cur = elems[idx]
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", ErrUninitializedRegister, r)
		}
	}
	return cur, nil
}

// Write stores v at r. Writes to the void register are discarded.
// Writing through a sub-address requires the enclosing composite to exist.
func (rs *Registers) Write(r Reg, v Value) error {
	switch r.Class {
	case RegVoid:
		return nil
	case RegParam:
		return fmt.Errorf("%w: %s: parameters are read-only", ErrBadAddress, r)
	case RegLocal:
	default:
		return fmt.Errorf("%w: class %d", ErrBadAddress, r.Class)
	}

	if len(r.Path) == 0 {
		for len(rs.slots) <= r.Slot {
			rs.slots = append(rs.slots, nil)
		}
		rs.slots[r.Slot] = v
		return nil
	}

	if r.Slot >= len(rs.slots) || rs.slots[r.Slot] == nil {
		return fmt.Errorf("%w: %s: no composite at r%d", ErrNotComposite, r, r.Slot)
	}
	updated, err := setPath(rs.slots[r.Slot], r.Path, v)
	if err != nil {
		return fmt.Errorf("%s: %w", r, err)
	}
	rs.slots[r.Slot] = updated
	return nil
}

// Clone returns a deep copy of the register file.
func (rs *Registers) Clone() *Registers {
	out := &Registers{
		slots:  make([]Value, len(rs.slots)),
		params: Clone(rs.params).(Tuple),
	}
	for i, v := range rs.slots {
		if v != nil {
			out.slots[i] = Clone(v)
		}
	}
	return out
}

func items(v Value) ([]Value, error) {
	switch c := v.(type) {
	case Tuple:
		return c, nil
	case Struct:
		return c.Fields, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotComposite, TypeName(v))
	}
}

func setPath(cur Value, path []int, v Value) (Value, error) {
	elems, err := items(cur)
	if err != nil {
		return nil, err
	}
	idx := path[0]
	if idx >= len(elems) {
		return nil, fmt.Errorf("%w: index %d out of range (len %d)", ErrBadAddress, idx, len(elems))
	}
	if len(path) == 1 {
		elems[idx] = v
		return cur, nil
	}
	if elems[idx] == nil {
		return nil, fmt.Errorf("%w: index %d is empty", ErrNotComposite, idx)
	}
	child, err := setPath(elems[idx], path[1:], v)
	if err != nil {
		return nil, err
	}
	elems[idx] = child
	return cur, nil
}
