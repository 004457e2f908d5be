package ir

import (
	"fmt"
	"math"

	"fortio.org/safecast"
)

// Intern builds the structural node (kind, typ, ops, flags) after eager
// normalization. typ may be nil for kinds whose type follows from the
// operands. Nominal kinds are rejected; use CreateMutable.
func (w *World) Intern(kind Kind, typ *Def, ops []*Def, flags uint64) *Def {
	for _, op := range ops {
		w.check(op)
	}
	switch {
	case kind.IsArith():
		w.expectOps(kind, ops, 2)
		return w.Arith(kind, ops[0], ops[1])
	case kind.IsCmp():
		w.expectOps(kind, ops, 2)
		return w.cmp(kind, ops[0], ops[1])
	}
	switch kind {
	case KindSigma:
		return w.Sigma(ops...)
	case KindPi:
		return w.Pi(ops...)
	case KindPrim:
		p, err := safecast.Conv[uint8](flags)
		if err != nil || PrimKind(p) >= primCount {
			panic(fmt.Sprintf("ir: invalid prim kind %d", flags))
		}
		return w.prims[p]
	case KindLit:
		return w.Lit(typ, flags)
	case KindBottom:
		return w.Bottom(typ)
	case KindError:
		return w.Error(typ)
	case KindSelect:
		w.expectOps(kind, ops, 3)
		return w.Select(ops[0], ops[1], ops[2])
	case KindTuple:
		return w.Tuple(ops...)
	case KindExtract:
		w.expectOps(kind, ops, 1)
		return w.Extract(ops[0], flagIndex(flags))
	case KindInsert:
		w.expectOps(kind, ops, 2)
		return w.Insert(ops[0], flagIndex(flags), ops[1])
	case KindVar:
		w.expectOps(kind, ops, 1)
		return w.Var(ops[0], flagIndex(flags))
	case KindApp:
		if len(ops) == 0 {
			panic("ir: app without callee")
		}
		return w.App(ops[0], ops[1:]...)
	case KindAxiom:
		return w.Axiom(flags, typ, ops...)
	case KindStar:
		return w.builtins.Star
	case KindNever:
		return w.builtins.Never
	default:
		panic(fmt.Sprintf("ir: cannot intern %s", kind))
	}
}

// Rebuild re-interns the structural node d with new operands.
func (w *World) Rebuild(d *Def, ops []*Def) *Def {
	if d.nominal {
		panic(fmt.Sprintf("ir: rebuild of nominal %s", d))
	}
	if slicesEqual(d.ops, ops) {
		return d
	}
	return w.Intern(d.kind, d.typ, ops, d.flags)
}

func slicesEqual(a, b []*Def) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (w *World) expectOps(kind Kind, ops []*Def, n int) {
	if len(ops) != n {
		panic(fmt.Sprintf("ir: %s expects %d operands, got %d", kind, n, len(ops)))
	}
}

func flagIndex(flags uint64) int {
	i, err := safecast.Conv[int](flags)
	if err != nil {
		panic(fmt.Errorf("ir: index overflow: %w", err))
	}
	return i
}

func indexFlag(i int) uint64 {
	f, err := safecast.Conv[uint64](i)
	if err != nil {
		panic(fmt.Errorf("ir: negative index %d: %w", i, err))
	}
	return f
}

// types ----------------------------------------------------------------------

// Prim returns the builtin type for p.
func (w *World) Prim(p PrimKind) *Def {
	if p >= primCount {
		panic(fmt.Sprintf("ir: invalid prim kind %d", p))
	}
	return w.prims[p]
}

// Sigma returns the structural tuple type of elems.
func (w *World) Sigma(elems ...*Def) *Def {
	for _, e := range elems {
		w.check(e)
		if e.typ != w.builtins.Star {
			panic(fmt.Sprintf("ir: sigma element %s is not a type", e))
		}
	}
	return w.unify(KindSigma, w.builtins.Star, elems, 0)
}

// Pi returns the continuation type taking dom.
func (w *World) Pi(dom ...*Def) *Def {
	for _, e := range dom {
		w.check(e)
		if e.typ != w.builtins.Star {
			panic(fmt.Sprintf("ir: pi domain %s is not a type", e))
		}
	}
	return w.unify(KindPi, w.builtins.Star, dom, 0)
}

// literals -------------------------------------------------------------------

// Lit returns the literal of prim type typ holding bits (masked to width).
func (w *World) Lit(typ *Def, bits uint64) *Def {
	p := w.primOf(typ)
	if !p.IsFloat() {
		bits &= p.mask()
	} else if p == PrimF32 {
		bits &= math.MaxUint32
	}
	return w.unify(KindLit, typ, nil, bits)
}

// LitInt returns an integer literal, truncated to the type's width.
func (w *World) LitInt(typ *Def, v int64) *Def {
	return w.Lit(typ, uint64(v)) //nolint:gosec // two's complement reinterpretation
}

// LitFloat returns a float literal of type f32 or f64.
func (w *World) LitFloat(typ *Def, v float64) *Def {
	switch w.primOf(typ) {
	case PrimF32:
		return w.Lit(typ, uint64(math.Float32bits(float32(v))))
	case PrimF64:
		return w.Lit(typ, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("ir: float literal of type %s", typ))
	}
}

// Bool returns the bool literal b.
func (w *World) Bool(b bool) *Def {
	if b {
		return w.Lit(w.builtins.Bool, 1)
	}
	return w.Lit(w.builtins.Bool, 0)
}

// Zero returns the zero literal of typ.
func (w *World) Zero(typ *Def) *Def { return w.Lit(typ, 0) }

// AllOnes returns the literal with every bit set.
func (w *World) AllOnes(typ *Def) *Def { return w.Lit(typ, ^uint64(0)) }

// Bottom returns the undefined value of typ.
func (w *World) Bottom(typ *Def) *Def {
	w.check(typ)
	return w.unify(KindBottom, typ, nil, 0)
}

// Error returns the trapping error value of typ.
func (w *World) Error(typ *Def) *Def {
	w.check(typ)
	return w.unify(KindError, typ, nil, 0)
}

func (w *World) primOf(typ *Def) PrimKind {
	w.check(typ)
	if typ.kind != KindPrim {
		panic(fmt.Sprintf("ir: %s is not a primitive type", typ))
	}
	return PrimKind(typ.flags)
}

// aggregates -----------------------------------------------------------------

// Tuple builds a tuple value.
func (w *World) Tuple(ops ...*Def) *Def {
	types := make([]*Def, len(ops))
	for i, op := range ops {
		w.check(op)
		types[i] = op.typ
	}
	// tuple(extract(t, 0), ..., extract(t, n-1)) -> t
	if n := len(ops); n > 0 && ops[0].kind == KindExtract {
		agg := ops[0].ops[0]
		if w.arity(agg.typ) == n {
			eta := true
			for i, op := range ops {
				if op.kind != KindExtract || op.ops[0] != agg || op.Index() != i {
					eta = false
					break
				}
			}
			if eta {
				return agg
			}
		}
	}
	return w.unify(KindTuple, w.Sigma(types...), ops, 0)
}

func (w *World) arity(t *Def) int {
	if t == nil || t.kind != KindSigma {
		return -1
	}
	return len(t.ops)
}

func (w *World) elemType(agg *Def, i int) *Def {
	t := agg.typ
	if t.kind != KindSigma {
		panic(fmt.Sprintf("ir: %s of type %s is not a tuple", agg, t))
	}
	if i < 0 || i >= len(t.ops) {
		panic(fmt.Sprintf("ir: index %d out of range for %s", i, t))
	}
	return t.Op(i)
}

// Extract projects element i out of agg.
func (w *World) Extract(agg *Def, i int) *Def {
	w.check(agg)
	elem := w.elemType(agg, i)
	switch agg.kind {
	case KindTuple:
		return agg.ops[i]
	case KindInsert:
		if agg.Index() == i {
			return agg.ops[1]
		}
		return w.Extract(agg.ops[0], i)
	case KindBottom:
		return w.Bottom(elem)
	case KindError:
		return w.Error(elem)
	}
	return w.unify(KindExtract, elem, []*Def{agg}, indexFlag(i))
}

// Insert replaces element i of agg with v.
func (w *World) Insert(agg *Def, i int, v *Def) *Def {
	w.check(agg)
	w.check(v)
	if elem := w.elemType(agg, i); elem != v.typ {
		panic(fmt.Sprintf("ir: insert of %s into slot %d of type %s", v, i, elem))
	}
	if agg.kind == KindError || v.kind == KindError {
		return w.Error(agg.typ)
	}
	if agg.kind == KindTuple {
		ops := append([]*Def(nil), agg.ops...)
		ops[i] = v
		return w.Tuple(ops...)
	}
	return w.unify(KindInsert, agg.typ, []*Def{agg, v}, indexFlag(i))
}

// Select picks a if cond holds, b otherwise.
func (w *World) Select(cond, a, b *Def) *Def {
	w.check(cond)
	w.check(a)
	w.check(b)
	if cond.typ != w.builtins.Bool {
		panic(fmt.Sprintf("ir: select condition %s is not bool", cond))
	}
	if a.typ != b.typ {
		panic(fmt.Sprintf("ir: select arms differ in type: %s vs %s", a.typ, b.typ))
	}
	if cond.kind == KindError || a.kind == KindError || b.kind == KindError {
		return w.Error(a.typ)
	}
	switch {
	case a.kind == KindBottom:
		return b
	case b.kind == KindBottom:
		return a
	case a == b:
		return a
	}
	if cond.kind == KindLit {
		if cond.flags != 0 {
			return a
		}
		return b
	}
	return w.unify(KindSelect, a.typ, []*Def{cond, a, b}, 0)
}

// control flow ---------------------------------------------------------------

// Var returns variable i of the nominal lambda lam.
func (w *World) Var(lam *Def, i int) *Def {
	w.check(lam)
	if lam.kind != KindLam {
		panic(fmt.Sprintf("ir: variable of non-lambda %s", lam))
	}
	pi := lam.typ
	if i < 0 || i >= len(pi.ops) {
		panic(fmt.Sprintf("ir: variable %d out of range for %s", i, lam))
	}
	return w.unify(KindVar, pi.ops[i], []*Def{lam}, indexFlag(i))
}

// Vars returns all variables of lam.
func (w *World) Vars(lam *Def) []*Def {
	out := make([]*Def, len(lam.typ.ops))
	for i := range out {
		out[i] = w.Var(lam, i)
	}
	return out
}

// App builds a jump to callee.
func (w *World) App(callee *Def, args ...*Def) *Def {
	w.check(callee)
	pi := callee.typ
	if pi.kind != KindPi {
		panic(fmt.Sprintf("ir: callee %s has non-pi type %s", callee, pi))
	}
	if len(args) != len(pi.ops) {
		panic(fmt.Sprintf("ir: %s expects %d arguments, got %d", callee, len(pi.ops), len(args)))
	}
	for i, arg := range args {
		w.check(arg)
		if arg.typ != pi.ops[i] {
			panic(fmt.Sprintf("ir: argument %d of %s has type %s, want %s", i, callee, arg.typ, pi.ops[i]))
		}
	}
	if callee.kind == KindError {
		return w.Error(w.builtins.Never)
	}
	ops := make([]*Def, 0, len(args)+1)
	ops = append(ops, callee)
	ops = append(ops, args...)
	return w.unify(KindApp, w.builtins.Never, ops, 0)
}

// Jump sets lam's body to a jump to callee.
func (w *World) Jump(lam, callee *Def, args ...*Def) *Def {
	return w.Set(lam, w.App(callee, args...))
}

// Branch sets lam's body to a conditional jump to one of two argument-less
// continuations.
func (w *World) Branch(lam, cond, then, els *Def) *Def {
	return w.Jump(lam, w.Select(cond, then, els))
}

// Axiom builds a registry-backed operator. A normalizer registered for flags
// may fold the node away.
func (w *World) Axiom(flags uint64, typ *Def, args ...*Def) *Def {
	w.check(typ)
	for _, arg := range args {
		w.check(arg)
	}
	if norm, ok := w.registry.Normalizer(flags); ok {
		if d := norm(w, typ, args, flags); d != nil {
			w.check(d)
			return d
		}
	}
	return w.unify(KindAxiom, typ, args, flags)
}
