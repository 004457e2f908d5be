// Package pass drives rewrite passes over a scope to a fixpoint.
package pass

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"weft/internal/ir"
	"weft/internal/scope"
)

// Pass rewrites single nodes. Rewrite receives a node whose operands are
// already rewritten and returns its replacement, or the node itself. The
// replacement must have the same type.
//
// A pass must be monotone: once a node is rewritten, rewriting the result
// again must eventually return it unchanged. The manager does not check this;
// MaxIterations bounds a misbehaving pipeline.
type Pass interface {
	Name() string
	Rewrite(d *ir.Def) *ir.Def
}

// Starter is implemented by passes that reset state before each iteration.
type Starter interface {
	Start(s *scope.Scope)
}

// Finisher is implemented by passes that need to know when a run ends.
type Finisher interface {
	Finish()
}

// Factory builds a pass for one world.
type Factory func(w *ir.World) Pass

type entry struct {
	help    string
	factory Factory
}

// Registry maps pass names to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a named pass. Names must be unique.
func (r *Registry) Register(name, help string, f Factory) error {
	if name == "" || f == nil {
		return errors.New("pass: register needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("pass: %q registered twice", name)
	}
	r.entries[name] = entry{help: help, factory: f}
	return nil
}

// MustRegister is Register that panics on error, for package init.
func (r *Registry) MustRegister(name, help string, f Factory) {
	if err := r.Register(name, help, f); err != nil {
		panic(err)
	}
}

// Names lists the registered passes alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Help returns the description of a registered pass.
func (r *Registry) Help(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name].help
}

// Build instantiates the named passes for w in order.
func (r *Registry) Build(w *ir.World, names []string) ([]Pass, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	passes := make([]Pass, 0, len(names))
	var errs []error
	for _, name := range names {
		e, ok := r.entries[name]
		if !ok {
			errs = append(errs, fmt.Errorf("pass: unknown pass %q", name))
			continue
		}
		passes = append(passes, e.factory(w))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return passes, nil
}
