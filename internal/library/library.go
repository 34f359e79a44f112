// Package library resolves (module, function) names to executable code.
// Native modules are answered from the natives registry; every other module
// is looked up in the CUE program sources and compiled on demand.
package library

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/compiler"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/natives"
)

// Library is a program library over native modules and CUE sources.
//
// Thread-safety: all methods are safe for concurrent use. CUE values are
// not, so lookups and compilation are serialized by an internal mutex.
type Library struct {
	natives *natives.Registry

	mu      sync.Mutex
	ctx     *cue.Context
	sources []source
}

type source struct {
	name  string
	value cue.Value
}

// New creates a library that answers native modules from reg. reg may be
// nil for a library of CUE programs only.
func New(reg *natives.Registry) *Library {
	return &Library{
		natives: reg,
		ctx:     cuecontext.New(),
	}
}

// LoadSource adds CUE program text. name labels positions in errors.
func (l *Library) LoadSource(name, src string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.ctx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building %s: %v", name, err)}
	}
	l.sources = append(l.sources, source{name: name, value: v})
	return nil
}

// Resolve returns the code for module.fn. Missing names wrap
// code.ErrModuleNotFound or code.ErrFunctionNotFound; anything else is a
// compile error.
func (l *Library) Resolve(module, fn string) (*code.Code, error) {
	module, fn = ir.NormalizeName(module), ir.NormalizeName(fn)
	name := ir.QualifiedName(module, fn)

	if l.natives != nil && l.natives.HasModule(module) {
		if c, ok := l.natives.Lookup(module, fn); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %s", code.ErrFunctionNotFound, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	mod, ok := l.module(module)
	if !ok {
		return nil, fmt.Errorf("%w: %s", code.ErrModuleNotFound, module)
	}
	fnVal := mod.LookupPath(cue.MakePath(cue.Str("fn"), cue.Str(fn)))
	if !fnVal.Exists() {
		return nil, fmt.Errorf("%w: %s", code.ErrFunctionNotFound, name)
	}
	return compiler.CompileFunction(name, fnVal)
}

// module finds a program module. Earlier sources win. Caller holds l.mu.
func (l *Library) module(name string) (cue.Value, bool) {
	for _, src := range l.sources {
		mod := src.value.LookupPath(cue.MakePath(cue.Str("module"), cue.Str(name)))
		if mod.Exists() {
			return mod, true
		}
	}
	return cue.Value{}, false
}

// Modules returns the program module names, sorted. Native modules are
// not included.
func (l *Library) Modules() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool)
	for _, src := range l.sources {
		iter, err := src.value.LookupPath(cue.ParsePath("module")).Fields()
		if err != nil {
			continue
		}
		for iter.Next() {
			seen[iter.Label()] = true
		}
	}

	names := make([]string, 0, len(seen))
	for m := range seen {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// Functions returns the function names of a program module, sorted.
func (l *Library) Functions(module string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mod, ok := l.module(ir.NormalizeName(module))
	if !ok {
		return nil, fmt.Errorf("%w: %s", code.ErrModuleNotFound, module)
	}
	iter, err := mod.LookupPath(cue.ParsePath("fn")).Fields()
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", module, err)
	}

	var names []string
	for iter.Next() {
		names = append(names, iter.Label())
	}
	sort.Strings(names)
	return names, nil
}

// CheckResult is the outcome of compiling one program function.
type CheckResult struct {
	Module string
	Func   string
	Code   *code.Code
	Err    error
}

// Check compiles every program function, collecting all errors.
func (l *Library) Check() []CheckResult {
	var results []CheckResult
	for _, m := range l.Modules() {
		fns, err := l.Functions(m)
		if err != nil {
			results = append(results, CheckResult{Module: m, Err: err})
			continue
		}
		for _, fn := range fns {
			c, err := l.Resolve(m, fn)
			results = append(results, CheckResult{Module: m, Func: fn, Code: c, Err: err})
		}
	}
	return results
}
