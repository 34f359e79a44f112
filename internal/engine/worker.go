package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

type codeKey struct {
	module string
	fn     string
}

func (k codeKey) String() string { return ir.QualifiedName(k.module, k.fn) }

type waitReason int

const (
	waitCode waitReason = iota + 1
	waitFuture
	waitIO
)

func (r waitReason) String() string {
	switch r {
	case waitCode:
		return "code"
	case waitFuture:
		return "future"
	case waitIO:
		return "io"
	default:
		return fmt.Sprintf("waitReason(%d)", int(r))
	}
}

type parked struct {
	fiber  *Fiber
	reason waitReason
	key    codeKey
}

// pendingIop is an operation handed to the driver.
type pendingIop struct {
	ctx     *iop.Ctx
	outcome iop.Outcome
}

// Worker is a single-threaded fiber scheduler.
//
// CRITICAL: All Worker state is mutated only from the goroutine calling
// Run (or RunOnce). Other goroutines reach a Worker through Deliver.
type Worker struct {
	id       int64
	inbox    *mailbox
	out      Outbox
	fiberIDs *Clock
	driver   *iop.Driver
	maxDepth int
	quantum  int

	ready   []*Fiber
	waiting map[int64]*parked
	code    map[codeKey]*code.Code
	pending map[codeKey][]int64

	ctx context.Context
}

// NewWorker creates a Worker that reports to out. fiberIDs may be shared
// between Workers; nil gives the Worker its own clock.
func NewWorker(id int64, out Outbox, fiberIDs *Clock, opts ...Option) *Worker {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if fiberIDs == nil {
		fiberIDs = NewClock()
	}

	return &Worker{
		id:       id,
		inbox:    newMailbox(),
		out:      out,
		fiberIDs: fiberIDs,
		driver:   iop.NewDriver(s.iopTimeout, s.pollInterval),
		maxDepth: s.maxDepth,
		quantum:  s.quantum,
		waiting:  make(map[int64]*parked),
		code:     make(map[codeKey]*code.Code),
		pending:  make(map[codeKey][]int64),
		ctx:      context.Background(),
	}
}

// ID returns the Worker's id.
func (w *Worker) ID() int64 { return w.id }

// Deliver queues m for the Worker. Thread-safe.
// Returns false if the Worker has stopped.
func (w *Worker) Deliver(m Msg) bool {
	return w.inbox.Enqueue(m)
}

// Stop closes the Worker's mailbox. Run returns once the fibers that are
// ready have drained.
func (w *Worker) Stop() {
	w.inbox.Close()
}

// ReadyLen returns the number of runnable fibers.
func (w *Worker) ReadyLen() int { return len(w.ready) }

// WaitingLen returns the number of suspended fibers.
func (w *Worker) WaitingLen() int { return len(w.waiting) }

// CachedCode returns the Worker's local code for module.fn.
func (w *Worker) CachedCode(module, fn string) (*code.Code, bool) {
	c, ok := w.code[codeKey{module, fn}]
	return c, ok
}

// Run schedules fibers until ctx is cancelled, the mailbox is closed and
// drained, or a protocol violation occurs.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (w *Worker) Run(ctx context.Context) error {
	w.ctx = ctx
	slog.Info("worker starting", "worker", w.id)
	defer w.shutdown()

	for {
		progressed, err := w.RunOnce()
		if err != nil {
			slog.Error("worker stopping: fatal error", "worker", w.id, "error", err)
			return err
		}
		if progressed {
			select {
			case <-ctx.Done():
				slog.Info("worker stopping: context cancelled", "worker", w.id)
				return ctx.Err()
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("worker stopping: context cancelled", "worker", w.id)
			return ctx.Err()

		case <-w.inbox.Wait():
			if w.inbox.Drained() {
				slog.Info("worker stopping: mailbox closed", "worker", w.id)
				return nil
			}
		}
	}
}

// RunOnce drains every pending message, then runs one step of the first
// ready fiber. It reports whether any work was done. An error is fatal to
// the Worker.
func (w *Worker) RunOnce() (bool, error) {
	progressed := false
	for {
		m, ok := w.inbox.TryDequeue()
		if !ok {
			break
		}
		progressed = true
		if err := w.handleMsg(m); err != nil {
			return true, err
		}
	}

	f := w.popReady()
	if f == nil {
		return progressed, nil
	}
	w.step(f)
	return true, nil
}

func (w *Worker) handleMsg(m Msg) error {
	switch msg := m.(type) {
	case Spawn:
		w.spawn(msg)
		return nil
	case FoundCode:
		return w.foundCode(msg)
	case iopDone:
		return w.iopDone(msg)
	default:
		return newProtocolError(w.id, 0, "unexpected message %T", m)
	}
}

func (w *Worker) spawn(msg Spawn) {
	module, fn := ir.NormalizeName(msg.Module), ir.NormalizeName(msg.Func)
	root := NewRootFrame(module, fn)
	if msg.Repl {
		root = NewReplFrame(module, fn)
	}
	f := newFiber(w.fiberIDs.Next(), w.id, root)

	slog.Debug("fiber spawned",
		"worker", w.id,
		"fiber", f.ID,
		"entry", ir.QualifiedName(module, fn),
	)
	w.loadCode(f)
}

// loadCode binds the head frame's code from the local cache, or parks the
// fiber until the Application answers. Concurrent misses on the same
// function share one RequestCode.
func (w *Worker) loadCode(f *Fiber) {
	key := codeKey{f.head.Module, f.head.Func}
	if c, ok := w.code[key]; ok {
		f.head.Bind(c)
		w.pushReady(f)
		return
	}

	w.waiting[f.ID] = &parked{fiber: f, reason: waitCode, key: key}
	if waiters, ok := w.pending[key]; ok {
		w.pending[key] = append(waiters, f.ID)
		return
	}
	w.pending[key] = []int64{f.ID}
	w.out.Enqueue(RequestCode{
		WorkerID: w.id,
		FiberID:  f.ID,
		Module:   key.module,
		Func:     key.fn,
	})
}

func (w *Worker) foundCode(msg FoundCode) error {
	key := codeKey{msg.Module, msg.Func}
	p, ok := w.waiting[msg.FiberID]
	if !ok || p.reason != waitCode || p.key != key {
		return newProtocolError(w.id, msg.FiberID, "FoundCode for %s but fiber is not waiting for it", key)
	}
	if msg.Failure == nil && msg.Code == nil {
		return newProtocolError(w.id, msg.FiberID, "FoundCode for %s carries neither code nor failure", key)
	}

	waiters := w.pending[key]
	delete(w.pending, key)
	if msg.Failure == nil {
		w.code[key] = msg.Code
	}

	for _, id := range waiters {
		p := w.waiting[id]
		delete(w.waiting, id)

		if msg.Failure != nil {
			fail := *msg.Failure
			if p.fiber.depth == 1 {
				fail.Tag = ir.TagNoMain
				p.fiber.noMain = true
			}
			if err := p.fiber.head.SetResult(fail); err != nil {
				w.abort(p.fiber, newDefect(ErrCodeInterpreterDefect, err, "deliver resolution failure"))
				continue
			}
			w.complete(p.fiber, false)
			continue
		}
		p.fiber.head.Bind(msg.Code)
		w.pushReady(p.fiber)
	}
	return nil
}

func (w *Worker) step(f *Fiber) {
	frame := f.head
	if frame == nil || frame.code == nil {
		w.abort(f, newDefect(ErrCodeInterpreterDefect, nil, "ready fiber has no bound code"))
		return
	}

	var (
		ev  Event
		job *pendingIop
		err error
	)
	switch frame.code.Kind() {
	case code.KindBytecode:
		ev, err = frame.ExecuteStep(frame.code.Ops(), w.quantum)
	case code.KindNative:
		ev, err = w.runNative(frame)
	case code.KindIop:
		ev, job, err = w.runIop(f, frame)
	default:
		err = fmt.Errorf("unknown code kind %s", frame.code.Kind())
	}
	if err != nil {
		w.abort(f, stepError(err, "step failed"))
		return
	}

	w.dispatch(f, ev)
	if job != nil {
		w.launch(f.ID, job)
	}
}

// dispatch applies the scheduling decision of one step.
func (w *Worker) dispatch(f *Fiber, ev Event) {
	switch e := ev.(type) {
	case Complete:
		w.complete(f, e.Success)
	case Call:
		w.call(f, e)
	case Fork:
		w.pushReady(f)
	case FutureWait:
		w.park(f, waitFuture)
	case IOWait:
		w.park(f, waitIO)
	case Uneventful:
		w.abort(f, &RuntimeError{Code: ErrCodeUneventful, Message: "step produced no scheduling event"})
	default:
		w.abort(f, newDefect(ErrCodeInterpreterDefect, nil, "unknown event %T", ev))
	}
}

func (w *Worker) call(f *Fiber, e Call) {
	if f.depth >= w.maxDepth {
		w.abort(f, &RuntimeError{
			Code:    ErrCodeStackOverflow,
			Message: fmt.Sprintf("call to %s.%s exceeds depth limit %d", e.Module, e.Func, w.maxDepth),
		})
		return
	}

	frame := f.PushCall(e.Dst, ir.NormalizeName(e.Module), ir.NormalizeName(e.Func), e.Args)
	slog.Debug("fiber call",
		"worker", w.id,
		"fiber", f.ID,
		"callee", ir.QualifiedName(frame.Module, frame.Func),
		"depth", f.depth,
	)
	w.loadCode(f)
}

// complete pops the head frame. The result is already in the parent's
// destination register, so a caller resumes after its call op whether the
// callee succeeded or failed.
func (w *Worker) complete(f *Fiber, success bool) {
	done, err := f.popFrame()
	if err != nil {
		w.abort(f, newDefect(ErrCodeInterpreterDefect, err, "complete"))
		return
	}

	switch done.parent.Kind {
	case ParentCaller:
		f.head.PC++
		w.pushReady(f)

	case ParentMain, ParentRepl:
		slog.Debug("fiber finished",
			"worker", w.id,
			"fiber", f.ID,
			"success", success,
		)
		f.closeResources()
		w.out.Enqueue(MainResult{
			WorkerID: w.id,
			FiberID:  f.ID,
			Module:   done.Module,
			Func:     done.Func,
			Value:    done.result,
			Repl:     done.parent.Kind == ParentRepl,
			NoMain:   f.noMain,
		})

	default:
		f.head = done
		f.depth++
		w.abort(f, newDefect(ErrCodeInterpreterDefect, ErrNoParent, "complete %s.%s", done.Module, done.Func))
	}
}

func (w *Worker) runNative(frame *Frame) (Event, error) {
	fn := frame.code.NativeFunc()
	if fn == nil {
		return nil, fmt.Errorf("%s: native code without function", frame.code.Name())
	}

	v, err := fn(iop.NewParams(frame.Params()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", frame.code.Name(), err)
	}
	if v == nil {
		v = ir.Void{}
	}
	if err := frame.SetResult(v); err != nil {
		return nil, err
	}
	return Complete{Success: !ir.IsFailure(v)}, nil
}

// runIop starts an I/O operation. Synchronous outcomes complete the frame
// now; deferred ones park the fiber and return a job for the driver.
func (w *Worker) runIop(f *Fiber, frame *Frame) (Event, *pendingIop, error) {
	c := frame.code
	fn := c.IopFunc()
	if fn == nil {
		return nil, nil, fmt.Errorf("%s: iop code without function", c.Name())
	}

	args := frame.Params()
	ictx := iop.NewCtx(w.ctx, w.id, f.ID, args)

	if idx, ok := c.RsrcParam(); ok {
		if idx >= len(args) {
			ev, err := failFrame(frame, ir.Failure{
				Tag: ir.TagTypeMismatch,
				Msg: fmt.Sprintf("%s: resource parameter p%d missing (have %d)", c.Name(), idx, len(args)),
			})
			return ev, nil, err
		}
		ref, isRef := args[idx].(ir.RsrcRef)
		if !isRef {
			ev, err := failFrame(frame, ir.Failure{
				Tag: ir.TagTypeMismatch,
				Msg: fmt.Sprintf("%s: p%d is %s, not a resource", c.Name(), idx, ir.TypeName(args[idx])),
			})
			return ev, nil, err
		}
		r, err := f.takeResource(ref.ID)
		if err != nil {
			ev, err := failFrame(frame, ir.Failure{
				Tag: ir.TagNoResource,
				Msg: fmt.Sprintf("%s: %s is closed or in use", c.Name(), ref),
			})
			return ev, nil, err
		}
		ictx.Attach(ref.ID, r)
	}

	out := fn(ictx)
	switch out.(type) {
	case iop.Async:
		return FutureWait{Reg: frame.parent.Dst}, &pendingIop{ctx: ictx, outcome: out}, nil
	case iop.Blocking:
		return IOWait{}, &pendingIop{ctx: ictx, outcome: out}, nil
	}

	ev, err := w.settle(f, frame, ictx, out)
	return ev, nil, err
}

// settle completes frame with a final outcome, moving resources back into
// the fiber's table.
func (w *Worker) settle(f *Fiber, frame *Frame, ictx *iop.Ctx, out iop.Outcome) (Event, error) {
	switch o := out.(type) {
	case iop.Result:
		if err := w.restore(f, ictx, o.Rsrc, frame.code.Closes()); err != nil {
			return nil, err
		}
		v := o.Value
		if v == nil {
			v = ir.Void{}
		}
		if err := frame.SetResult(v); err != nil {
			return nil, err
		}
		return Complete{Success: !ir.IsFailure(v)}, nil

	case iop.NewResource:
		if o.Rsrc == nil {
			return nil, fmt.Errorf("NewResource without a resource")
		}
		if err := w.restore(f, ictx, o.Prev, false); err != nil {
			return nil, err
		}
		id := f.addResource(o.Rsrc)
		if err := frame.SetResult(ir.RsrcRef{ID: id, Kind: string(o.Rsrc.Kind())}); err != nil {
			return nil, err
		}
		return Complete{Success: true}, nil

	default:
		return nil, fmt.Errorf("unsettled outcome %T", out)
	}
}

// restore puts the operation's resource back under its original id. Only
// a closing operation may end without handing its resource back.
func (w *Worker) restore(f *Fiber, ictx *iop.Ctx, returned iop.Resource, closes bool) error {
	left := ictx.Release()
	id, hasSlot := ictx.RsrcID()

	if returned != nil && left != nil && returned != left {
		closeQuietly(returned)
		if err := f.putResource(id, left); err != nil {
			return err
		}
		return fmt.Errorf("operation returned %s while its context still held %s", returned.Kind(), left.Kind())
	}

	r := returned
	if r == nil {
		r = left
	}
	if r == nil {
		if hasSlot && !closes {
			return fmt.Errorf("%w: fiber %d: rsrc %d not handed back", iop.ErrResourceLost, f.ID, id)
		}
		return nil
	}
	if !hasSlot {
		closeQuietly(r)
		return fmt.Errorf("operation returned %s without a resource slot", r.Kind())
	}
	return f.putResource(id, r)
}

func (w *Worker) launch(fiberID int64, job *pendingIop) {
	ctx := w.ctx
	go func() {
		out, err := w.driver.Settle(ctx, job.ctx, job.outcome)
		done := iopDone{fiberID: fiberID, ctx: job.ctx, outcome: out, err: err}
		if !w.inbox.Enqueue(done) {
			discardIop(done)
		}
	}()
}

func (w *Worker) iopDone(msg iopDone) error {
	p, ok := w.waiting[msg.fiberID]
	if !ok || (p.reason != waitFuture && p.reason != waitIO) {
		discardIop(msg)
		return newProtocolError(w.id, msg.fiberID, "I/O completion but fiber is not waiting on I/O")
	}
	delete(w.waiting, msg.fiberID)
	f := p.fiber

	if msg.err != nil {
		discardIop(msg)
		w.abort(f, &RuntimeError{Code: ErrCodeResourceLost, Message: "pending operation dropped its resource", Err: msg.err})
		return nil
	}

	ev, err := w.settle(f, f.head, msg.ctx, msg.outcome)
	if err != nil {
		w.abort(f, stepError(err, "settle I/O"))
		return nil
	}
	w.dispatch(f, ev)
	return nil
}

func (w *Worker) park(f *Fiber, reason waitReason) {
	w.waiting[f.ID] = &parked{fiber: f, reason: reason}
}

func (w *Worker) pushReady(f *Fiber) {
	w.ready = append(w.ready, f)
}

func (w *Worker) popReady() *Fiber {
	if len(w.ready) == 0 {
		return nil
	}
	f := w.ready[0]
	w.ready[0] = nil
	if len(w.ready) == 1 {
		w.ready = w.ready[:0]
	} else {
		w.ready = w.ready[1:]
	}
	return f
}

// abort ends f with a defect and reports it to the Application.
func (w *Worker) abort(f *Fiber, re *RuntimeError) {
	re.WorkerID, re.FiberID = w.id, f.ID
	if re.Module == "" {
		re.Module, re.Func = f.ModuleName(), f.FunctionName()
	}

	slog.Error("fiber aborted",
		"worker", w.id,
		"fiber", f.ID,
		"code", re.Code,
		"error", re,
	)

	delete(w.waiting, f.ID)
	f.closeResources()

	module, fn := f.Entry()
	w.out.Enqueue(FiberAborted{
		WorkerID: w.id,
		FiberID:  f.ID,
		Module:   module,
		Func:     fn,
		Err:      re,
	})
}

func (w *Worker) shutdown() {
	w.inbox.Close()
	for {
		m, ok := w.inbox.TryDequeue()
		if !ok {
			break
		}
		if done, ok := m.(iopDone); ok {
			discardIop(done)
		}
	}
	for _, f := range w.ready {
		f.closeResources()
	}
	for _, p := range w.waiting {
		p.fiber.closeResources()
	}
	w.ready = nil
	w.waiting = make(map[int64]*parked)
	w.pending = make(map[codeKey][]int64)
}

// stepError classifies a failed step. A lost resource keeps its own code;
// anything else is an interpreter defect.
func stepError(err error, msg string) *RuntimeError {
	if errors.Is(err, iop.ErrResourceLost) {
		return &RuntimeError{Code: ErrCodeResourceLost, Message: msg, Err: err}
	}
	return newDefect(ErrCodeInterpreterDefect, err, msg)
}

func failFrame(frame *Frame, fail ir.Failure) (Event, error) {
	if err := frame.SetResult(fail); err != nil {
		return nil, err
	}
	return Complete{Success: false}, nil
}

func discardIop(done iopDone) {
	for _, r := range iop.Resources(done.outcome) {
		closeQuietly(r)
	}
	if done.ctx != nil {
		if r := done.ctx.Release(); r != nil {
			closeQuietly(r)
		}
	}
}

func closeQuietly(r iop.Resource) {
	if err := r.Close(); err != nil {
		slog.Debug("close resource", "kind", r.Kind(), "error", err)
	}
}
