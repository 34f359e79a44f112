package iop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/weft/internal/ir"
)

// DefaultTimeout bounds a single I/O operation.
const DefaultTimeout = 30 * time.Second

// DefaultReclaimWait bounds how long an expired blocking job may take to
// give up the resource it holds.
const DefaultReclaimWait = time.Second

// Driver settles deferred outcomes. It is safe for concurrent use; each
// Settle call runs on the caller's goroutine.
type Driver struct {
	timeout     time.Duration
	pollWait    time.Duration
	reclaimWait time.Duration
}

// NewDriver creates a driver. A zero timeout disables the timeout; a zero
// pollWait uses DefaultPollWait.
func NewDriver(timeout, pollWait time.Duration) *Driver {
	if pollWait <= 0 {
		pollWait = DefaultPollWait
	}
	return &Driver{timeout: timeout, pollWait: pollWait, reclaimWait: DefaultReclaimWait}
}

// Settle drives o until it is a Result or NewResource. The returned error is
// reserved for defects in the operation itself (ErrResourceLost); timeouts
// and cancellation settle as Failure values that hand the resource back.
func (d *Driver) Settle(parent context.Context, c *Ctx, o Outcome) (Outcome, error) {
	ctx := parent
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, d.timeout)
		defer cancel()
	}
	c.ctx = ctx
	c.SetPollWait(d.pollWait)

	for {
		switch out := o.(type) {
		case Result, NewResource:
			return o, nil
		case Blocking:
			next, err := d.runBlocking(ctx, c, out)
			if err != nil {
				return nil, err
			}
			o = next
		case Async:
			next, err := d.poll(ctx, c, out.Future)
			if err != nil {
				return nil, err
			}
			o = next
		case nil:
			return nil, errors.New("operation returned no outcome")
		default:
			return nil, fmt.Errorf("unknown outcome %T", o)
		}
	}
}

func (d *Driver) poll(ctx context.Context, c *Ctx, f Future) (Outcome, error) {
	for {
		had := c.HasRsrc()
		start := time.Now()

		out, ready := f.Poll(c)
		if ready {
			return out, nil
		}
		if had && !c.HasRsrc() {
			return nil, fmt.Errorf("%w: fiber %d", ErrResourceLost, c.FiberID)
		}

		// Futures that return immediately get the rest of the poll budget
		// as a pause.
		wait := d.pollWait - time.Since(start)
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return expired(c, err), nil
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return expired(c, ctx.Err()), nil
		case <-timer.C:
		}
	}
}

func (d *Driver) runBlocking(ctx context.Context, c *Ctx, b Blocking) (Outcome, error) {
	done := make(chan Outcome, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		if b.Rsrc == nil {
			go discard(done)
			return expired(c, ctx.Err()), nil
		}
		return d.reclaim(c, b.Rsrc, done, ctx.Err())
	}
}

// reclaim interrupts an expired job that holds r and waits for it to hand
// r back. A job that keeps r past the reclaim wait has lost it.
func (d *Driver) reclaim(c *Ctx, r Resource, done <-chan Outcome, cause error) (Outcome, error) {
	if err := setDeadline(r, time.Now()); err != nil {
		slog.Debug("interrupt blocking job", "kind", r.Kind(), "error", err)
	}

	timer := time.NewTimer(d.reclaimWait)
	defer timer.Stop()
	select {
	case out := <-done:
		for _, other := range Resources(out) {
			if other != r {
				closeQuietly(other)
			}
		}
		if err := setDeadline(r, time.Time{}); err != nil {
			slog.Debug("clear deadline", "kind", r.Kind(), "error", err)
		}
		res := expired(c, cause).(Result)
		res.Rsrc = r
		return res, nil
	case <-timer.C:
		go discard(done)
		return nil, fmt.Errorf("%w: fiber %d: blocking job still holds %s", ErrResourceLost, c.FiberID, r.Kind())
	}
}

func expired(c *Ctx, err error) Outcome {
	rsrc := c.Release()
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Value: ir.Failure{Tag: ir.TagTimeout, Msg: "operation timed out"}, Rsrc: rsrc}
	}
	return Result{Value: ir.Failure{Tag: ir.TagCanceled, Msg: err.Error()}, Rsrc: rsrc}
}

// discard waits for an abandoned blocking job and closes whatever
// resources it produced.
func discard(done <-chan Outcome) {
	out := <-done
	for _, r := range Resources(out) {
		closeQuietly(r)
	}
}

func closeQuietly(r Resource) {
	if err := r.Close(); err != nil {
		slog.Debug("close abandoned resource", "kind", r.Kind(), "error", err)
	}
}

// Resources returns the resources carried by a settled outcome.
func Resources(o Outcome) []Resource {
	var out []Resource
	switch v := o.(type) {
	case Result:
		if v.Rsrc != nil {
			out = append(out, v.Rsrc)
		}
	case NewResource:
		if v.Rsrc != nil {
			out = append(out, v.Rsrc)
		}
		if v.Prev != nil {
			out = append(out, v.Prev)
		}
	}
	return out
}
