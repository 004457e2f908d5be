package ir

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"weft/internal/trace"
)

// Builtins stores the types every world is seeded with.
type Builtins struct {
	Star  *Def
	Never *Def
	Unit  *Def
	Bool  *Def
	I8    *Def
	I16   *Def
	I32   *Def
	I64   *Def
	F32   *Def
	F64   *Def
}

// World owns every node of one term universe. It is not safe for concurrent
// use; independent worlds may be used from different goroutines.
type World struct {
	defs  []*Def
	free  []uint32
	table map[defKey]*Def

	builtins Builtins
	prims    [primCount]*Def
	pinned   []*Def

	externals map[*Def]struct{}
	reachable map[*Def]struct{}

	registry *Registry
	tracer   trace.Tracer
	epoch    uint32
}

// New constructs a world seeded with the builtin types. reg may be nil.
func New(reg *Registry) *World {
	if reg == nil {
		reg = NewRegistry()
	}
	w := &World{
		table:     make(map[defKey]*Def, 1024),
		externals: make(map[*Def]struct{}),
		reachable: make(map[*Def]struct{}),
		registry:  reg,
		tracer:    trace.Nop,
	}
	w.builtins.Star = w.unify(KindStar, nil, nil, 0)
	w.builtins.Never = w.unify(KindNever, w.builtins.Star, nil, 0)
	w.builtins.Unit = w.unify(KindSigma, w.builtins.Star, nil, 0)
	for p := range primCount {
		w.prims[p] = w.unify(KindPrim, w.builtins.Star, nil, uint64(p)).SetName(p.String())
	}
	w.builtins.Bool = w.prims[PrimBool]
	w.builtins.I8 = w.prims[PrimI8]
	w.builtins.I16 = w.prims[PrimI16]
	w.builtins.I32 = w.prims[PrimI32]
	w.builtins.I64 = w.prims[PrimI64]
	w.builtins.F32 = w.prims[PrimF32]
	w.builtins.F64 = w.prims[PrimF64]
	w.pinned = append(w.pinned, w.builtins.Star, w.builtins.Never, w.builtins.Unit)
	w.pinned = append(w.pinned, w.prims[:]...)
	return w
}

// Builtins returns the seeded types.
func (w *World) Builtins() Builtins { return w.builtins }

// Registry returns the annex registry consulted by Axiom.
func (w *World) Registry() *Registry { return w.registry }

// SetTracer installs the tracer used for cleanup spans.
func (w *World) SetTracer(t trace.Tracer) {
	if t == nil {
		t = trace.Nop
	}
	w.tracer = t
}

// Tracer returns the installed tracer.
func (w *World) Tracer() trace.Tracer { return w.tracer }

// NumDefs returns the number of live nodes.
func (w *World) NumDefs() int {
	return len(w.defs) - len(w.free)
}

// Contains reports whether d is a live node of w.
func (w *World) Contains(d *Def) bool {
	return d != nil && d.world == w && !d.dead
}

// Defs returns a snapshot of all live nodes ordered by GID.
func (w *World) Defs() []*Def {
	out := make([]*Def, 0, w.NumDefs())
	for _, d := range w.defs {
		if d != nil {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, byGID)
	return out
}

func byGID(a, b *Def) int {
	switch {
	case a.gid < b.gid:
		return -1
	case a.gid > b.gid:
		return 1
	default:
		return 0
	}
}

// check panics unless d is a live node of w.
func (w *World) check(d *Def) {
	if d == nil {
		panic("ir: nil operand")
	}
	if d.world != w {
		panic(fmt.Sprintf("ir: %s belongs to another world", d))
	}
	if d.dead {
		panic(fmt.Sprintf("ir: use of destroyed node %s", d))
	}
}

// unify returns the live structural node for the key, creating it if absent.
func (w *World) unify(kind Kind, typ *Def, ops []*Def, flags uint64) *Def {
	key := makeKey(kind, typ, ops, flags)
	if d, ok := w.table[key]; ok {
		return d
	}
	d := w.alloc(kind, typ, slices.Clone(ops), flags)
	d.set = true
	w.table[key] = d
	return d
}

func (w *World) alloc(kind Kind, typ *Def, ops []*Def, flags uint64) *Def {
	d := &Def{
		world: w,
		gid:   nextGID(),
		kind:  kind,
		typ:   typ,
		ops:   ops,
		flags: flags,
	}
	if n := len(w.free); n > 0 {
		d.slot = w.free[n-1]
		w.free = w.free[:n-1]
		w.defs[d.slot] = d
		return d
	}
	slot, err := safecast.Conv[uint32](len(w.defs))
	if err != nil {
		panic(fmt.Errorf("ir: arena overflow: %w", err))
	}
	d.slot = slot
	w.defs = append(w.defs, d)
	return d
}

// CreateMutable allocates an empty nominal node with room for numOps operands.
func (w *World) CreateMutable(kind Kind, typ *Def, numOps int) *Def {
	w.check(typ)
	switch kind {
	case KindLam:
		if typ.kind != KindPi {
			panic(fmt.Sprintf("ir: lambda needs a pi type, got %s", typ))
		}
		if numOps != 1 {
			panic(fmt.Sprintf("ir: lambda has exactly one operand, got %d", numOps))
		}
	case KindSigma:
		if typ != w.builtins.Star {
			panic(fmt.Sprintf("ir: nominal sigma must have type *, got %s", typ))
		}
	default:
		panic(fmt.Sprintf("ir: %s cannot be nominal", kind))
	}
	if numOps < 0 {
		panic("ir: negative operand count")
	}
	d := w.alloc(kind, typ, make([]*Def, numOps), 0)
	d.nominal = true
	return d
}

// Lam creates an empty nominal continuation of type pi.
func (w *World) Lam(pi *Def, name string) *Def {
	return w.CreateMutable(KindLam, pi, 1).SetName(name)
}

// NominalSigma creates an empty recursive aggregate type with n elements.
func (w *World) NominalSigma(n int, name string) *Def {
	return w.CreateMutable(KindSigma, w.builtins.Star, n).SetName(name)
}

// Stub creates a fresh, unset nominal with the same kind, type and name as d.
func (w *World) Stub(d *Def) *Def {
	w.check(d)
	if !d.nominal {
		panic(fmt.Sprintf("ir: stub of structural node %s", d))
	}
	return w.CreateMutable(d.kind, d.typ, len(d.ops)).SetName(d.name)
}

// Set fills a nominal node. It must be called exactly once.
func (w *World) Set(d *Def, ops ...*Def) *Def {
	w.check(d)
	if !d.nominal {
		panic(fmt.Sprintf("ir: set on structural node %s", d))
	}
	if d.set {
		panic(fmt.Sprintf("ir: nominal %s is already set", d))
	}
	if len(ops) != len(d.ops) {
		panic(fmt.Sprintf("ir: %s expects %d operands, got %d", d, len(d.ops), len(ops)))
	}
	for _, op := range ops {
		w.check(op)
	}
	switch d.kind {
	case KindLam:
		if ops[0].typ != w.builtins.Never {
			panic(fmt.Sprintf("ir: body of %s must be a jump, got %s", d, ops[0]))
		}
	case KindSigma:
		for _, op := range ops {
			if op.typ != w.builtins.Star {
				panic(fmt.Sprintf("ir: element %s of %s is not a type", op, d))
			}
		}
	}
	copy(d.ops, ops)
	d.set = true
	return d
}

// Destroy removes d from the world and recycles its slot. Callers must make
// sure no live node still refers to d; Cleanup does.
func (w *World) Destroy(d *Def) {
	w.check(d)
	if !d.nominal {
		key := makeKey(d.kind, d.typ, d.ops, d.flags)
		if w.table[key] == d {
			delete(w.table, key)
		}
	}
	delete(w.externals, d)
	delete(w.reachable, d)
	w.defs[d.slot] = nil
	w.free = append(w.free, d.slot)
	d.dead = true
	d.ops = nil
	d.flows = nil
}

// MakeExternal pins d against cleanup. External lambdas are also entry points
// for control flow.
func (w *World) MakeExternal(d *Def) {
	w.check(d)
	w.externals[d] = struct{}{}
	if d.kind == KindLam {
		w.reachable[d] = struct{}{}
	}
}

// RemoveExternal unpins d.
func (w *World) RemoveExternal(d *Def) {
	delete(w.externals, d)
	delete(w.reachable, d)
}

// IsExternal reports whether d is pinned.
func (w *World) IsExternal(d *Def) bool {
	_, ok := w.externals[d]
	return ok
}

// Externals returns the pinned nodes ordered by GID.
func (w *World) Externals() []*Def {
	return sortedKeys(w.externals)
}

// SetReachable declares a nominal lambda as a control-flow root.
func (w *World) SetReachable(lam *Def) {
	w.check(lam)
	if lam.kind != KindLam {
		panic(fmt.Sprintf("ir: reachable root %s is not a lambda", lam))
	}
	w.reachable[lam] = struct{}{}
}

// Reachable returns the control-flow roots ordered by GID.
func (w *World) Reachable() []*Def {
	return sortedKeys(w.reachable)
}

// Redirect moves the root memberships of old to replacement.
func (w *World) Redirect(old, replacement *Def) {
	if old == replacement {
		return
	}
	w.check(replacement)
	if _, ok := w.externals[old]; ok {
		delete(w.externals, old)
		w.externals[replacement] = struct{}{}
	}
	if _, ok := w.reachable[old]; ok {
		delete(w.reachable, old)
		if replacement.kind == KindLam {
			w.reachable[replacement] = struct{}{}
		}
	}
}

func sortedKeys(m map[*Def]struct{}) []*Def {
	out := make([]*Def, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	slices.SortFunc(out, byGID)
	return out
}

// AddFlow records that value flows into the variable v.
func (w *World) AddFlow(v, value *Def) {
	w.check(v)
	v.AddFlow(value)
}
