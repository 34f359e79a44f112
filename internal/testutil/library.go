package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/ir"
)

// MapLibrary is an in-memory function library for tests.
//
// It counts Resolve calls per function so tests can assert that a function
// was resolved exactly once.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MapLibrary struct {
	mu      sync.Mutex
	modules map[string]map[string]*code.Code
	calls   map[string]int
}

// NewMapLibrary creates an empty library.
func NewMapLibrary() *MapLibrary {
	return &MapLibrary{
		modules: make(map[string]map[string]*code.Code),
		calls:   make(map[string]int),
	}
}

// Add registers c as module.fn.
func (l *MapLibrary) Add(module, fn string, c *code.Code) *MapLibrary {
	l.mu.Lock()
	defer l.mu.Unlock()

	funcs, ok := l.modules[module]
	if !ok {
		funcs = make(map[string]*code.Code)
		l.modules[module] = funcs
	}
	funcs[fn] = c
	return l
}

// AddOps registers bytecode for module.fn.
func (l *MapLibrary) AddOps(module, fn string, ops ...ir.Op) *MapLibrary {
	return l.Add(module, fn, code.Bytecode(ir.QualifiedName(module, fn), ops))
}

// Resolve implements the engine's Library interface.
func (l *MapLibrary) Resolve(module, fn string) (*code.Code, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls[ir.QualifiedName(module, fn)]++

	funcs, ok := l.modules[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", code.ErrModuleNotFound, module)
	}
	c, ok := funcs[fn]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", code.ErrFunctionNotFound, module, fn)
	}
	return c, nil
}

// Resolves returns how many times module.fn was resolved.
func (l *MapLibrary) Resolves(module, fn string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[ir.QualifiedName(module, fn)]
}
