package iop

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/weft/internal/ir"
)

// DefaultPollWait bounds how long a single Future.Poll may block.
const DefaultPollWait = 25 * time.Millisecond

// Ctx is the context of one I/O operation: who requested it, its
// parameters, and at most one resource slot.
type Ctx struct {
	ctx      context.Context
	WorkerID int64
	FiberID  int64

	params *Params

	rsrcID  int64
	hasSlot bool
	rsrc    Resource

	pollWait time.Duration
}

// NewCtx creates a context without a resource slot.
func NewCtx(ctx context.Context, workerID, fiberID int64, args ir.Tuple) *Ctx {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Ctx{
		ctx:      ctx,
		WorkerID: workerID,
		FiberID:  fiberID,
		params:   NewParams(args),
		pollWait: DefaultPollWait,
	}
}

// Attach gives the context a resource slot with id, filled with r.
func (c *Ctx) Attach(id int64, r Resource) {
	c.rsrcID = id
	c.hasSlot = true
	c.rsrc = r
}

// Context returns the cancellation context the operation runs under.
func (c *Ctx) Context() context.Context { return c.ctx }

// PollWait returns the longest a single poll may block.
func (c *Ctx) PollWait() time.Duration { return c.pollWait }

// SetPollWait overrides the poll budget.
func (c *Ctx) SetPollWait(d time.Duration) {
	if d > 0 {
		c.pollWait = d
	}
}

// Params returns the argument list.
func (c *Ctx) Params() *Params { return c.params }

// TakeParam moves argument i out of the argument list.
func (c *Ctx) TakeParam(i int) (ir.Value, error) {
	return c.params.Take(i)
}

// RsrcID returns the slot's resource id.
func (c *Ctx) RsrcID() (int64, bool) { return c.rsrcID, c.hasSlot }

// HasRsrc reports whether the slot currently holds a resource.
func (c *Ctx) HasRsrc() bool { return c.rsrc != nil }

// TakeRsrc moves the resource out of the context.
func (c *Ctx) TakeRsrc() (Resource, error) {
	if c.rsrc == nil {
		return nil, ErrNoResource
	}
	r := c.rsrc
	c.rsrc = nil
	return r, nil
}

// InitRsrc moves r back into the context's slot.
func (c *Ctx) InitRsrc(r Resource) error {
	if !c.hasSlot {
		return ErrNoResourceSlot
	}
	if c.rsrc != nil {
		return fmt.Errorf("%w: rsrc %d", ErrResourceOccupied, c.rsrcID)
	}
	c.rsrc = r
	return nil
}

// Release empties the slot and returns whatever it held.
func (c *Ctx) Release() Resource {
	r := c.rsrc
	c.rsrc = nil
	return r
}

// TakeAs moves the resource out of c as a concrete type. On a kind
// mismatch the resource stays in c.
func TakeAs[T Resource](c *Ctx) (T, error) {
	var zero T
	r, err := c.TakeRsrc()
	if err != nil {
		return zero, err
	}
	t, ok := r.(T)
	if !ok {
		c.rsrc = r
		return zero, fmt.Errorf("%w: have %s", ErrWrongResource, r.Kind())
	}
	return t, nil
}
