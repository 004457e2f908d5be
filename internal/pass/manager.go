package pass

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"weft/internal/ir"
	"weft/internal/observ"
	"weft/internal/scope"
	"weft/internal/trace"
)

// ErrNoFixpoint is returned when a pipeline still rewrites after
// MaxIterations rounds.
var ErrNoFixpoint = errors.New("pass: no fixpoint")

// Stats summarises a run.
type Stats struct {
	Iterations   int
	Replacements int
	PerPass      map[string]int
	// Entries are the scope entries after the run. Rewritten nominals are
	// replaced by fresh ones, so callers must continue with these.
	Entries []*ir.Def
}

// Manager runs a pipeline of passes over one world.
type Manager struct {
	world  *ir.World
	passes []Pass

	// MaxIterations caps the fixpoint loop; zero means no cap.
	MaxIterations int
	// Timer, if set, records one phase per iteration and one for cleanup.
	Timer *observ.Timer
}

// NewManager creates a manager for w.
func NewManager(w *ir.World, passes ...Pass) *Manager {
	return &Manager{world: w, passes: passes}
}

// Add appends p to the pipeline.
func (m *Manager) Add(p Pass) { m.passes = append(m.passes, p) }

// Passes returns the pipeline.
func (m *Manager) Passes() []Pass { return m.passes }

// Run rewrites the scope until a full iteration replaces nothing.
func (m *Manager) Run(ctx context.Context, s *scope.Scope) (Stats, error) {
	if s.World() != m.world {
		return Stats{}, errors.New("pass: scope belongs to another world")
	}
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopePass, "pipeline", trace.CurrentSpan(ctx).SpanID)
	stats := Stats{PerPass: make(map[string]int, len(m.passes))}

	defer func() {
		for _, p := range m.passes {
			if f, ok := p.(Finisher); ok {
				f.Finish()
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			span.End("cancelled")
			stats.Entries = s.Entries()
			return stats, err
		}
		if m.MaxIterations > 0 && stats.Iterations >= m.MaxIterations {
			span.End("no fixpoint")
			stats.Entries = s.Entries()
			return stats, fmt.Errorf("%w after %d iterations", ErrNoFixpoint, stats.Iterations)
		}
		stats.Iterations++

		name := "iteration " + strconv.Itoa(stats.Iterations)
		phase := m.Timer.Begin(name)
		it := trace.Begin(tr, trace.ScopeIteration, name, span.ID())

		r := m.iterate(s, tr, it.ID())
		stats.Replacements += r.replaced
		for pass, n := range r.perPass {
			stats.PerPass[pass] += n
		}

		note := strconv.Itoa(r.replaced) + " replaced"
		it.End(note)
		m.Timer.End(phase, note)

		if r.replaced == 0 || !r.changed {
			stats.Entries = s.Entries()
			span.WithExtra("iterations", strconv.Itoa(stats.Iterations)).
				WithExtra("replacements", strconv.Itoa(stats.Replacements)).
				End("converged")
			return stats, nil
		}
		s = scope.New(m.world, r.entries...)
	}
}

// RunWorld runs the pipeline over everything the externals reach, then
// removes garbage.
func (m *Manager) RunWorld(ctx context.Context) (Stats, ir.CleanupStats, error) {
	var stats Stats
	if externals := m.world.Externals(); len(externals) > 0 {
		var err error
		stats, err = m.Run(ctx, scope.New(m.world, externals...))
		if err != nil {
			return stats, ir.CleanupStats{}, err
		}
	}
	m.world.SetTracer(trace.FromContext(ctx))
	phase := m.Timer.Begin("cleanup")
	cs := m.world.Cleanup()
	m.Timer.End(phase, fmt.Sprintf("%d lams, %d defs removed", cs.UnreachableLams, cs.DeadDefs))
	return stats, cs, nil
}

type iteration struct {
	replaced int
	perPass  map[string]int
	changed  bool
	entries  []*ir.Def
}

// iterate performs one round: every node of the scope is rebuilt from its
// rewritten operands and handed to each pass in turn. If a nominal body
// changed, all lambdas of the scope are rebuilt into fresh stubs.
func (m *Manager) iterate(s *scope.Scope, tr trace.Tracer, parent uint64) iteration {
	w := m.world
	res := iteration{perPass: make(map[string]int, len(m.passes))}

	for _, p := range m.passes {
		if st, ok := p.(Starter); ok {
			st.Start(s)
		}
	}
	memo := make([]map[*ir.Def]*ir.Def, len(m.passes))
	for i := range memo {
		memo[i] = make(map[*ir.Def]*ir.Def)
	}

	rewritten := make(map[*ir.Def]*ir.Def, s.Size())
	lookup := func(d *ir.Def) *ir.Def {
		if nd, ok := rewritten[d]; ok {
			return nd
		}
		return d
	}

	for _, d := range s.Defs() {
		if d.IsNominal() {
			continue
		}
		nd := d
		if d.Kind() != ir.KindVar {
			ops := make([]*ir.Def, d.NumOps())
			for i, op := range d.Ops() {
				ops[i] = lookup(op)
			}
			nd = w.Rebuild(d, ops)
		}
		for i, p := range m.passes {
			if r, ok := memo[i][nd]; ok {
				nd = r
				continue
			}
			r := p.Rewrite(nd)
			if r == nil {
				r = nd
			}
			if r != nd {
				if r.Type() != nd.Type() {
					panic(fmt.Sprintf("pass: %s rewrote %s of type %s to %s of type %s", p.Name(), nd, nd.Type(), r, r.Type()))
				}
				res.replaced++
				res.perPass[p.Name()]++
				trace.Point(tr, trace.ScopeNode, p.Name(), nd.String()+" -> "+r.String(), parent)
			}
			memo[i][nd] = r
			nd = r
		}
		if nd != d {
			rewritten[d] = nd
		}
	}

	for _, n := range s.PostOrder() {
		if n.Kind() != ir.KindLam || !n.IsSet() {
			continue
		}
		if lookup(n.Body()) != n.Body() {
			res.changed = true
			break
		}
	}
	for _, e := range s.Entries() {
		if lookup(e) != e {
			res.changed = true
		}
	}
	if !res.changed {
		res.entries = s.Entries()
		return res
	}
	res.entries = m.restub(s, lookup)
	return res
}

// restub copies every set lambda of s into a fresh stub whose body is the
// rewritten body with old lambdas and their variables replaced by the stubs.
// Roots follow the stubs. It returns the new entries.
func (m *Manager) restub(s *scope.Scope, lookup func(*ir.Def) *ir.Def) []*ir.Def {
	w := m.world
	stubs := make(map[*ir.Def]*ir.Def)
	for _, n := range s.PostOrder() {
		if n.Kind() == ir.KindLam && n.IsSet() {
			stubs[n] = w.Stub(n)
		}
	}

	subst := make(map[*ir.Def]*ir.Def)
	var visit func(d *ir.Def) *ir.Def
	visit = func(d *ir.Def) *ir.Def {
		if nd, ok := subst[d]; ok {
			return nd
		}
		var nd *ir.Def
		switch {
		case d.IsNominal():
			nd = d
			if stub, ok := stubs[d]; ok {
				nd = stub
			}
		case d.Kind() == ir.KindVar:
			stub, ok := stubs[d.Binder()]
			if !ok {
				nd = d
				break
			}
			// Recorded flows move to the new variable; they may mention it.
			nd = w.Var(stub, d.Index())
			subst[d] = nd
			for _, f := range d.Flows() {
				nd.AddFlow(visit(lookup(f)))
			}
			return nd
		default:
			ops := make([]*ir.Def, d.NumOps())
			for i, op := range d.Ops() {
				ops[i] = visit(op)
			}
			nd = w.Rebuild(d, ops)
		}
		subst[d] = nd
		return nd
	}

	for _, n := range s.PostOrder() {
		stub, ok := stubs[n]
		if !ok {
			continue
		}
		w.Set(stub, visit(lookup(n.Body())))
	}
	for old, stub := range stubs {
		w.Redirect(old, stub)
	}

	entries := make([]*ir.Def, len(s.Entries()))
	for i, e := range s.Entries() {
		entries[i] = visit(lookup(e))
	}
	return entries
}
