// Package scope computes the region of a term graph reachable from a set of
// entry nodes and the control flow graph between its nominals.
package scope

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-set/v3"

	"weft/internal/ir"
)

// Scope is an immutable snapshot; rebuild it after the graph changes.
type Scope struct {
	world   *ir.World
	entries []*ir.Def

	defs     *set.Set[*ir.Def]
	order    []*ir.Def // operands before users
	nominals []*ir.Def // CFG post order
	free     []*ir.Def

	succs map[*ir.Def][]*ir.Def
	preds map[*ir.Def][]*ir.Def
}

type colour uint8

const (
	unvisited colour = iota
	inProgress
	done
)

// New computes the scope of entries. Entries must be live nodes of w.
func New(w *ir.World, entries ...*ir.Def) *Scope {
	if len(entries) == 0 {
		panic("scope: no entries")
	}
	s := &Scope{
		world:   w,
		entries: slices.Clone(entries),
		defs:    set.New[*ir.Def](64),
		succs:   make(map[*ir.Def][]*ir.Def),
		preds:   make(map[*ir.Def][]*ir.Def),
	}
	for _, e := range entries {
		if !w.Contains(e) {
			panic(fmt.Sprintf("scope: entry %s is not live in this world", e))
		}
	}
	s.close()
	s.buildCFG()
	s.collectFreeVars()
	return s
}

// children returns the operand edges followed by the closure. A variable's
// edge to its binder is not one of them.
func children(d *ir.Def) []*ir.Def {
	if !d.IsSet() || d.Kind() == ir.KindVar {
		return nil
	}
	return d.Ops()
}

// close walks operand edges depth-first with explicit colours so that
// nominal cycles terminate and every edge is inspected once.
func (s *Scope) close() {
	state := make(map[*ir.Def]colour)
	type frame struct {
		def  *ir.Def
		next int
	}
	var stack []frame
	for _, e := range s.entries {
		if state[e] != unvisited {
			continue
		}
		state[e] = inProgress
		stack = append(stack, frame{def: e})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			ops := children(top.def)
			if top.next < len(ops) {
				op := ops[top.next]
				top.next++
				if state[op] == unvisited {
					state[op] = inProgress
					stack = append(stack, frame{def: op})
				}
				continue
			}
			state[top.def] = done
			s.defs.Insert(top.def)
			s.order = append(s.order, top.def)
			stack = stack[:len(stack)-1]
		}
	}
}

// buildCFG links every nominal to the nominals it reaches through structural
// nodes only, then numbers the nominals in post order. Each structural node
// is expanded once; its frontier is shared by all users.
func (s *Scope) buildCFG() {
	var nominals []*ir.Def
	for _, d := range s.order {
		if d.IsNominal() {
			nominals = append(nominals, d)
		}
	}
	memo := make(map[*ir.Def][]*ir.Def)
	for _, n := range nominals {
		s.succs[n] = s.frontier(children(n), memo)
		for _, m := range s.succs[n] {
			s.preds[m] = append(s.preds[m], n)
		}
	}
	for _, preds := range s.preds {
		slices.SortFunc(preds, byGID)
	}

	visited := set.New[*ir.Def](len(nominals))
	var visit func(n *ir.Def)
	visit = func(n *ir.Def) {
		if !visited.Insert(n) {
			return
		}
		for _, m := range s.succs[n] {
			visit(m)
		}
		s.nominals = append(s.nominals, n)
	}
	for _, e := range s.entries {
		if e.IsNominal() {
			visit(e)
		}
	}
	rest := slices.Clone(nominals)
	slices.SortFunc(rest, byGID)
	for _, n := range rest {
		visit(n)
	}
}

// frontier returns the nominals ops lead to without passing through another
// nominal, sorted by GID. Structural operands form a DAG, so the recursion
// ends; memoised slices are shared and never modified.
func (s *Scope) frontier(ops []*ir.Def, memo map[*ir.Def][]*ir.Def) []*ir.Def {
	var out []*ir.Def
	for _, op := range ops {
		var part []*ir.Def
		switch {
		case op.IsNominal():
			if !s.defs.Contains(op) {
				continue
			}
			part = []*ir.Def{op}
		default:
			var ok bool
			if part, ok = memo[op]; !ok {
				part = s.frontier(children(op), memo)
				memo[op] = part
			}
		}
		out = union(out, part)
	}
	return out
}

// union merges two GID-sorted sets. It returns one of its arguments when the
// other is empty and a fresh slice otherwise.
func union(a, b []*ir.Def) []*ir.Def {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	out := make([]*ir.Def, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		switch c := byGID(a[0], b[0]); {
		case c < 0:
			out, a = append(out, a[0]), a[1:]
		case c > 0:
			out, b = append(out, b[0]), b[1:]
		default:
			out, a, b = append(out, a[0]), a[1:], b[1:]
		}
	}
	out = append(out, a...)
	return append(out, b...)
}

func (s *Scope) collectFreeVars() {
	for _, d := range s.order {
		if d.Kind() == ir.KindVar && !s.defs.Contains(d.Binder()) {
			s.free = append(s.free, d)
		}
	}
	slices.SortFunc(s.free, byGID)
}

func byGID(a, b *ir.Def) int {
	switch {
	case a.GID() < b.GID():
		return -1
	case a.GID() > b.GID():
		return 1
	default:
		return 0
	}
}

// World returns the world the scope was computed in.
func (s *Scope) World() *ir.World { return s.world }

// Entries returns the nodes the scope was built from.
func (s *Scope) Entries() []*ir.Def { return s.entries }

// Entry returns the first entry, the root of control flow analyses.
func (s *Scope) Entry() *ir.Def { return s.entries[0] }

// Contains reports whether d is in the closure.
func (s *Scope) Contains(d *ir.Def) bool { return s.defs.Contains(d) }

// Size returns the number of nodes in the closure.
func (s *Scope) Size() int { return s.defs.Size() }

// Defs returns the closure with operands before their users. The exception
// are back edges: a nominal comes after its body even if the body uses it.
func (s *Scope) Defs() []*ir.Def { return s.order }

// PostOrder returns the nominals in CFG post order from the entries.
// Nominals no entry reaches come last, in creation order.
func (s *Scope) PostOrder() []*ir.Def { return s.nominals }

// ReversePostOrder returns the nominals in reverse CFG post order.
func (s *Scope) ReversePostOrder() []*ir.Def {
	out := slices.Clone(s.nominals)
	slices.Reverse(out)
	return out
}

// Succs returns the CFG successors of the nominal n.
func (s *Scope) Succs(n *ir.Def) []*ir.Def { return s.succs[n] }

// Preds returns the CFG predecessors of the nominal n.
func (s *Scope) Preds(n *ir.Def) []*ir.Def { return s.preds[n] }

// Exits returns the nominals without successors, in creation order.
func (s *Scope) Exits() []*ir.Def {
	var out []*ir.Def
	for _, n := range s.nominals {
		if len(s.succs[n]) == 0 {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, byGID)
	return out
}

// FreeVars returns the variables used in the scope whose binder lies outside.
func (s *Scope) FreeVars() []*ir.Def { return s.free }

// IsClosed reports whether the scope has no free variables.
func (s *Scope) IsClosed() bool { return len(s.free) == 0 }
