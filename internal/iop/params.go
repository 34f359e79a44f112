package iop

import (
	"fmt"

	"github.com/roach88/weft/internal/ir"
)

// Params is a native function's argument list. Each argument can be moved
// out exactly once.
type Params struct {
	items []ir.Value
	taken []bool
}

// NewParams takes ownership of args.
func NewParams(args ir.Tuple) *Params {
	return &Params{
		items: args,
		taken: make([]bool, len(args)),
	}
}

// Len returns the number of arguments, taken or not.
func (p *Params) Len() int { return len(p.items) }

// Take moves argument i out of the list.
func (p *Params) Take(i int) (ir.Value, error) {
	if i < 0 || i >= len(p.items) {
		return nil, fmt.Errorf("%w: index %d (have %d)", ErrParamMissing, i, len(p.items))
	}
	if p.taken[i] {
		return nil, fmt.Errorf("%w: index %d", ErrParamTaken, i)
	}
	p.taken[i] = true
	v := p.items[i]
	p.items[i] = nil
	return v, nil
}
