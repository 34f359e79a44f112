package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/ir"
)

// Library resolves functions to code. Implementations must be safe for
// concurrent use and wrap code.ErrModuleNotFound / code.ErrFunctionNotFound
// for missing names.
type Library interface {
	Resolve(module, fn string) (*code.Code, error)
}

// ErrNotRunning is returned by WaitForResult before Run.
var ErrNotRunning = errors.New("application is not running")

// Result is the outcome of one entry call.
type Result struct {
	Module  string
	Func    string
	FiberID int64
	Value   ir.Value
	Err     error
	NoMain  bool // the entry function never ran
}

// Application owns the Workers, the canonical code cache and the
// resolution of RequestCode messages.
//
// Thread-safety model:
//   - PushCall, Run, WaitForResult, Close: safe from any goroutine
//   - Each Worker runs on its own goroutine
//   - One dispatch goroutine drains the Application mailbox
type Application struct {
	lib      Library
	settings settings
	workers  []*Worker
	inbox    *mailbox
	seq      *Clock
	fibers   *Clock
	runID    string

	cacheMu sync.RWMutex
	cache   map[codeKey]*code.Code
	group   singleflight.Group

	mu          sync.Mutex
	calls       []codeKey
	next        int
	running     bool
	outstanding int
	fatal       error

	results chan Result
	cancel  context.CancelFunc
	eg      *errgroup.Group
	gctx    context.Context
}

// NewApplication creates an Application resolving code through lib.
func NewApplication(lib Library, opts ...Option) *Application {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	a := &Application{
		lib:      lib,
		settings: s,
		inbox:    newMailbox(),
		seq:      NewClock(),
		fibers:   NewClock(),
		runID:    s.runIDs.Generate(),
		cache:    make(map[codeKey]*code.Code),
		results:  make(chan Result, 64),
	}

	for i := 0; i < s.workers; i++ {
		a.workers = append(a.workers, NewWorker(int64(i), a.inbox, a.fibers, opts...))
	}
	return a
}

// RunID returns the id this run is recorded under.
func (a *Application) RunID() string { return a.runID }

// WorkerCount returns the number of Workers.
func (a *Application) WorkerCount() int { return len(a.workers) }

// PushCall queues an entry call of module.fn. Calls pushed before Run are
// spawned when it starts; later calls are spawned immediately.
func (a *Application) PushCall(module, fn string) {
	key := codeKey{ir.NormalizeName(module), ir.NormalizeName(fn)}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		a.calls = append(a.calls, key)
		return
	}
	a.spawn(a.gctx, key)
}

// Run starts every Worker and the dispatch loop, then spawns queued calls.
// It returns immediately; use WaitForResult and Close.
func (a *Application) Run(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return errors.New("application already running")
	}
	a.running = true

	ctx, a.cancel = context.WithCancel(ctx)
	a.eg, a.gctx = errgroup.WithContext(ctx)
	gctx := a.gctx

	slog.Info("application starting",
		"run", a.runID,
		"workers", len(a.workers),
		"calls", len(a.calls),
	)

	if rec := a.settings.recorder; rec != nil {
		run := ir.Run{ID: a.runID, Entry: a.entryList(), Workers: int64(len(a.workers))}
		if err := rec.BeginRun(ctx, run); err != nil {
			slog.Warn("trace: begin run failed", "run", a.runID, "error", err)
		}
	}

	for _, w := range a.workers {
		a.eg.Go(func() error {
			err := w.Run(gctx)
			if err != nil && gctx.Err() == nil {
				a.setFatal(err)
			}
			return err
		})
	}
	a.eg.Go(func() error {
		err := a.dispatch(gctx)
		if err != nil && gctx.Err() == nil {
			a.setFatal(err)
		}
		return err
	})

	calls := a.calls
	a.calls = nil
	for _, key := range calls {
		a.spawn(gctx, key)
	}
	return nil
}

// WaitForResult blocks until the next entry call finishes. A defect that
// aborted the call is returned as the error. With no entry calls it returns
// a no_main Failure.
func (a *Application) WaitForResult(ctx context.Context) (ir.Value, error) {
	r, err := a.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return r.Value, r.Err
}

// Wait is WaitForResult with the full Result.
func (a *Application) Wait(ctx context.Context) (Result, error) {
	a.mu.Lock()
	running, outstanding, gctx := a.running, a.outstanding, a.gctx
	a.mu.Unlock()

	if !running {
		return Result{}, ErrNotRunning
	}

	select {
	case r := <-a.results:
		a.finish()
		return r, nil
	default:
	}

	if outstanding == 0 {
		return Result{Value: ir.Failure{Tag: ir.TagNoMain, Msg: "no entry call was made"}, NoMain: true}, nil
	}

	select {
	case r := <-a.results:
		a.finish()
		return r, nil
	case <-gctx.Done():
		if err := a.fatalErr(); err != nil {
			return Result{}, err
		}
		return Result{}, gctx.Err()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops every Worker and waits for them. It returns the first fatal
// error any of them hit.
func (a *Application) Close() error {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if !running {
		return nil
	}

	a.cancel()
	for _, w := range a.workers {
		w.Stop()
	}
	a.inbox.Close()

	err := a.eg.Wait()
	slog.Info("application stopped",
		"run", a.runID,
		"fibers", a.fibers.Current(),
		"trace_entries", a.seq.Current(),
	)
	if fatal := a.fatalErr(); fatal != nil {
		return fatal
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// spawn sends an entry call to the next Worker in round-robin order.
// Caller holds a.mu.
func (a *Application) spawn(ctx context.Context, key codeKey) {
	w := a.workers[a.next%len(a.workers)]
	a.next++
	a.outstanding++

	a.record(ctx, ir.TraceEntry{
		Kind:     ir.TraceSpawn,
		WorkerID: w.id,
		Module:   key.module,
		Func:     key.fn,
	})
	if !w.Deliver(Spawn{Module: key.module, Func: key.fn}) {
		slog.Warn("spawn dropped: worker stopped", "worker", w.id, "entry", key)
	}
}

func (a *Application) dispatch(ctx context.Context) error {
	for {
		if m, ok := a.inbox.TryDequeue(); ok {
			if err := a.handle(ctx, m); err != nil {
				slog.Error("application stopping: fatal error", "error", err)
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.inbox.Wait():
			if a.inbox.Drained() {
				return nil
			}
		}
	}
}

func (a *Application) handle(ctx context.Context, m Msg) error {
	switch msg := m.(type) {
	case RequestCode:
		if msg.WorkerID < 0 || msg.WorkerID >= int64(len(a.workers)) {
			return newProtocolError(msg.WorkerID, msg.FiberID, "RequestCode from unknown worker")
		}
		a.record(ctx, ir.TraceEntry{
			Kind:     ir.TraceRequestCode,
			WorkerID: msg.WorkerID,
			FiberID:  msg.FiberID,
			Module:   msg.Module,
			Func:     msg.Func,
		})
		go a.answer(ctx, msg)
		return nil

	case MainResult:
		a.record(ctx, ir.TraceEntry{
			Kind:     ir.TraceMainResult,
			WorkerID: msg.WorkerID,
			FiberID:  msg.FiberID,
			Module:   msg.Module,
			Func:     msg.Func,
			Value:    msg.Value,
		})
		return a.deliver(ctx, Result{
			Module:  msg.Module,
			Func:    msg.Func,
			FiberID: msg.FiberID,
			Value:   msg.Value,
			NoMain:  msg.NoMain,
		})

	case FiberAborted:
		a.record(ctx, ir.TraceEntry{
			Kind:     ir.TraceFiberAborted,
			WorkerID: msg.WorkerID,
			FiberID:  msg.FiberID,
			Module:   msg.Module,
			Func:     msg.Func,
			Detail:   string(ErrorCode(msg.Err)),
		})
		return a.deliver(ctx, Result{Module: msg.Module, Func: msg.Func, FiberID: msg.FiberID, Err: msg.Err})

	default:
		return newProtocolError(0, 0, "application received unexpected message %T", m)
	}
}

// answer resolves one RequestCode and replies to the requesting Worker.
func (a *Application) answer(ctx context.Context, req RequestCode) {
	key := codeKey{req.Module, req.Func}
	found := FoundCode{FiberID: req.FiberID, Module: req.Module, Func: req.Func}

	entry := ir.TraceEntry{
		Kind:     ir.TraceFoundCode,
		WorkerID: req.WorkerID,
		FiberID:  req.FiberID,
		Module:   req.Module,
		Func:     req.Func,
	}

	c, err := a.resolve(key)
	if err != nil {
		fail := failureFor(err)
		found.Failure = &fail
		entry.Value = fail
		slog.Debug("resolve failed", "func", key, "error", err)
	} else {
		found.Code = c
		entry.Detail = c.Kind().String()
	}

	a.record(ctx, entry)
	if !a.workers[req.WorkerID].Deliver(found) {
		slog.Debug("found code dropped: worker stopped", "worker", req.WorkerID)
	}
}

// resolve returns the canonical code for key, compiling it at most once.
func (a *Application) resolve(key codeKey) (*code.Code, error) {
	a.cacheMu.RLock()
	c, ok := a.cache[key]
	a.cacheMu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := a.group.Do(key.String(), func() (any, error) {
		a.cacheMu.RLock()
		c, ok := a.cache[key]
		a.cacheMu.RUnlock()
		if ok {
			return c, nil
		}

		c, err := a.lib.Resolve(key.module, key.fn)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("%s: library returned no code", key)
		}

		a.cacheMu.Lock()
		a.cache[key] = c
		a.cacheMu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*code.Code), nil
}

func (a *Application) deliver(ctx context.Context, r Result) error {
	select {
	case a.results <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Application) record(ctx context.Context, e ir.TraceEntry) {
	rec := a.settings.recorder
	if rec == nil {
		return
	}
	e.RunID = a.runID
	e.Seq = a.seq.Next()
	if err := rec.Record(ctx, e); err != nil {
		slog.Warn("trace: record failed",
			"run", a.runID,
			"seq", e.Seq,
			"kind", e.Kind,
			"error", err,
		)
	}
}

func (a *Application) finish() {
	a.mu.Lock()
	a.outstanding--
	a.mu.Unlock()
}

func (a *Application) setFatal(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fatal == nil {
		a.fatal = err
	}
}

func (a *Application) fatalErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fatal
}

// entryList renders the queued calls. Caller holds a.mu.
func (a *Application) entryList() string {
	names := make([]string, len(a.calls))
	for i, k := range a.calls {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

func failureFor(err error) ir.Failure {
	switch {
	case errors.Is(err, code.ErrModuleNotFound):
		return ir.Failure{Tag: ir.TagModuleNotFound, Msg: err.Error()}
	case errors.Is(err, code.ErrFunctionNotFound):
		return ir.Failure{Tag: ir.TagFunctionNotFound, Msg: err.Error()}
	default:
		return ir.Failure{Tag: ir.TagCompileError, Msg: err.Error()}
	}
}
