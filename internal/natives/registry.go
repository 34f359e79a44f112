package natives

import (
	"io"
	"os"
	"sort"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/ir"
)

// Registry maps (module, function) names to host code.
//
// Thread-safety: a Registry is immutable after New and safe for concurrent
// use.
type Registry struct {
	modules map[string]map[string]*code.Code
	stdout  io.Writer
	stderr  io.Writer
}

// Option configures a Registry.
type Option func(*Registry)

// WithStdout sets where prefab.cout writes. Default: os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(r *Registry) { r.stdout = w }
}

// WithStderr sets where prefab.cerr writes. Default: os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(r *Registry) { r.stderr = w }
}

// New creates a registry holding the prefab, file, tcp and udp modules.
func New(opts ...Option) *Registry {
	r := &Registry{
		modules: make(map[string]map[string]*code.Code),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.registerPrefab()
	r.registerFile()
	r.registerTCP()
	r.registerUDP()
	return r
}

func (r *Registry) add(module string, c *code.Code) {
	funcs, ok := r.modules[module]
	if !ok {
		funcs = make(map[string]*code.Code)
		r.modules[module] = funcs
	}
	funcs[c.Name()[len(module)+1:]] = c
}

// HasModule reports whether module is a native module.
func (r *Registry) HasModule(module string) bool {
	_, ok := r.modules[module]
	return ok
}

// Lookup returns the code for module.fn.
func (r *Registry) Lookup(module, fn string) (*code.Code, bool) {
	c, ok := r.modules[module][fn]
	return c, ok
}

// Modules returns the native module names, sorted.
func (r *Registry) Modules() []string {
	names := make([]string, 0, len(r.modules))
	for m := range r.modules {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// Functions returns the function names of module, sorted.
func (r *Registry) Functions(module string) []string {
	funcs := r.modules[module]
	names := make([]string, 0, len(funcs))
	for fn := range funcs {
		names = append(names, fn)
	}
	sort.Strings(names)
	return names
}

func qualified(module, fn string) string { return ir.QualifiedName(module, fn) }
