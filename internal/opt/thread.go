package opt

import (
	"weft/internal/ir"
	"weft/internal/scope"
)

// ThreadJumps redirects a jump to a continuation whose body only forwards
// its parameters, in order, to another continuation. Chains are followed to
// their end; a chain that loops back on itself is left alone.
type ThreadJumps struct {
	targets map[*ir.Def]*ir.Def
}

// NewThreadJumps returns the pass with an empty cache.
func NewThreadJumps() *ThreadJumps {
	return &ThreadJumps{targets: make(map[*ir.Def]*ir.Def)}
}

func (*ThreadJumps) Name() string { return "thread-jumps" }

// Start drops cached targets; bodies are rebuilt between iterations.
func (t *ThreadJumps) Start(*scope.Scope) {
	clear(t.targets)
}

func (t *ThreadJumps) Rewrite(d *ir.Def) *ir.Def {
	switch d.Kind() {
	case ir.KindApp:
		callee := d.Callee()
		target := t.target(callee)
		if target == callee {
			return d
		}
		return d.World().App(target, d.Args()...)
	case ir.KindSelect:
		a, b := d.Op(1), d.Op(2)
		ta, tb := t.target(a), t.target(b)
		if ta == a && tb == b {
			return d
		}
		return d.World().Select(d.Op(0), ta, tb)
	default:
		return d
	}
}

// target follows the forwarding chain that starts at k.
func (t *ThreadJumps) target(k *ir.Def) *ir.Def {
	if cached, ok := t.targets[k]; ok {
		return cached
	}
	seen := map[*ir.Def]bool{k: true}
	cur := k
	for {
		next, ok := forwardsTo(cur)
		if !ok {
			break
		}
		if seen[next] {
			cur = k
			break
		}
		seen[next] = true
		cur = next
	}
	t.targets[k] = cur
	return cur
}

// forwardsTo reports whether lam's body is callee(vars of lam...).
func forwardsTo(lam *ir.Def) (*ir.Def, bool) {
	if lam.Kind() != ir.KindLam || !lam.IsSet() {
		return nil, false
	}
	body := lam.Body()
	if body.Kind() != ir.KindApp {
		return nil, false
	}
	callee := body.Callee()
	if callee.Kind() != ir.KindLam {
		return nil, false
	}
	args := body.Args()
	if len(args) != lam.Type().NumOps() {
		return nil, false
	}
	for i, arg := range args {
		if arg.Kind() != ir.KindVar || arg.Binder() != lam || arg.Index() != i {
			return nil, false
		}
	}
	return callee, true
}
