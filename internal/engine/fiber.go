package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// ErrNoSuchResource is returned when a fiber's resource table has no entry
// for an id.
var ErrNoSuchResource = errors.New("no such resource")

// Fiber is a lightweight thread of execution: a stack of frames plus the
// resources it owns. A fiber belongs to exactly one Worker for its whole
// life.
type Fiber struct {
	ID       int64
	WorkerID int64

	entryModule string
	entryFunc   string

	head  *Frame
	depth int

	rsrcs    map[int64]iop.Resource
	nextRsrc int64

	// noMain is set when the entry function itself failed to resolve.
	noMain bool
}

func newFiber(id, workerID int64, root *Frame) *Fiber {
	return &Fiber{
		ID:          id,
		WorkerID:    workerID,
		entryModule: root.Module,
		entryFunc:   root.Func,
		head:        root,
		depth:       1,
		rsrcs:       make(map[int64]iop.Resource),
	}
}

// Entry returns the module and function the fiber was spawned at.
func (f *Fiber) Entry() (string, string) { return f.entryModule, f.entryFunc }

// Head returns the innermost frame.
func (f *Fiber) Head() *Frame { return f.head }

// Depth returns the number of frames on the stack.
func (f *Fiber) Depth() int { return f.depth }

// ModuleName returns the module of the head frame.
func (f *Fiber) ModuleName() string {
	if f.head == nil {
		return ""
	}
	return f.head.Module
}

// FunctionName returns the function of the head frame.
func (f *Fiber) FunctionName() string {
	if f.head == nil {
		return ""
	}
	return f.head.Func
}

// PushCall makes a new frame for module.fn the head.
func (f *Fiber) PushCall(dst ir.Reg, module, fn string, args ir.Tuple) *Frame {
	frame := NewCallFrame(f.head, dst, module, fn, args)
	f.head = frame
	f.depth++
	return frame
}

// popFrame removes the head frame and returns it. The caller, if any,
// becomes the head.
func (f *Fiber) popFrame() (*Frame, error) {
	if f.head == nil {
		return nil, errors.New("pop from empty stack")
	}
	done := f.head
	f.head = done.parent.Caller
	f.depth--
	return done, nil
}

func (f *Fiber) addResource(r iop.Resource) int64 {
	f.nextRsrc++
	f.rsrcs[f.nextRsrc] = r
	return f.nextRsrc
}

func (f *Fiber) takeResource(id int64) (iop.Resource, error) {
	r, ok := f.rsrcs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchResource, id)
	}
	delete(f.rsrcs, id)
	return r, nil
}

func (f *Fiber) putResource(id int64, r iop.Resource) error {
	if _, ok := f.rsrcs[id]; ok {
		return fmt.Errorf("%w: rsrc %d", iop.ErrResourceOccupied, id)
	}
	f.rsrcs[id] = r
	return nil
}

// closeResources releases every resource the fiber still owns, in id order.
func (f *Fiber) closeResources() {
	ids := make([]int64, 0, len(f.rsrcs))
	for id := range f.rsrcs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		r := f.rsrcs[id]
		delete(f.rsrcs, id)
		if err := r.Close(); err != nil {
			slog.Debug("close fiber resource",
				"fiber", f.ID,
				"rsrc", id,
				"kind", r.Kind(),
				"error", err,
			)
		}
	}
}
