package ir

import (
	"fmt"
	"math"
)

// Arith builds the binary operator kind applied to a and b, folding it where
// the operands allow.
func (w *World) Arith(kind Kind, a, b *Def) *Def {
	if !kind.IsArith() {
		panic(fmt.Sprintf("ir: %s is not an arithmetic operator", kind))
	}
	w.check(a)
	w.check(b)
	typ := a.typ
	p := w.operandPrim(kind, a, b)

	if a.kind == KindError || b.kind == KindError {
		return w.Error(typ)
	}
	if kind.IsDivOrRem() {
		if b.kind == KindBottom {
			return w.Error(typ)
		}
		if b.kind == KindLit && !p.IsFloat() && b.flags == 0 {
			return w.Error(typ)
		}
	}
	if a.kind == KindBottom || b.kind == KindBottom {
		switch {
		case a.kind == KindBottom && b.kind == KindBottom:
			return w.Bottom(typ)
		case kind == KindAnd:
			return w.Zero(typ)
		case kind == KindOr:
			return w.AllOnes(typ)
		default:
			return w.Bottom(typ)
		}
	}
	if (kind == KindShl || kind == KindLShr || kind == KindAShr) && b.kind == KindLit && b.flags >= uint64(p.Width()) {
		return w.Bottom(typ)
	}
	if a.kind == KindLit && b.kind == KindLit {
		if p.IsFloat() {
			return w.LitFloat(typ, evalFloat(kind, p, a.Float(), b.Float()))
		}
		return w.Lit(typ, evalInt(kind, p, a.flags, b.flags))
	}
	if kind.IsCommutative() && a.gid > b.gid {
		a, b = b, a
	}
	if !p.IsFloat() {
		if d := w.intIdentity(kind, a, b); d != nil {
			return d
		}
	}
	return w.unify(kind, typ, []*Def{a, b}, 0)
}

// Add, Sub and Mul are shorthands for the common operators.
func (w *World) Add(a, b *Def) *Def { return w.Arith(KindAdd, a, b) }
func (w *World) Sub(a, b *Def) *Def { return w.Arith(KindSub, a, b) }
func (w *World) Mul(a, b *Def) *Def { return w.Arith(KindMul, a, b) }

func (w *World) operandPrim(kind Kind, a, b *Def) PrimKind {
	if a.typ != b.typ {
		panic(fmt.Sprintf("ir: %s operands differ in type: %s vs %s", kind, a.typ, b.typ))
	}
	p, ok := a.Prim()
	if !ok || a.kind == KindPrim {
		panic(fmt.Sprintf("ir: %s operand %s is not a primitive value", kind, a))
	}
	if p.IsFloat() && kind.isIntOnly() {
		panic(fmt.Sprintf("ir: %s is undefined on %s", kind, p))
	}
	if !p.IsFloat() && kind.isFloatOnly() {
		panic(fmt.Sprintf("ir: %s is undefined on %s", kind, p))
	}
	return p
}

// intIdentity applies algebraic identities for integer operands; a and b are
// already in canonical order.
func (w *World) intIdentity(kind Kind, a, b *Def) *Def {
	typ := a.typ
	isLit := func(d *Def, v uint64) bool {
		return d.kind == KindLit && d.flags == v
	}
	p, _ := typ.Prim()
	ones := p.mask()
	switch kind {
	case KindAdd, KindOr, KindXor:
		if isLit(a, 0) {
			return b
		}
		if isLit(b, 0) {
			return a
		}
		if a == b {
			switch kind {
			case KindXor:
				return w.Zero(typ)
			case KindOr:
				return a
			}
		}
		if kind == KindOr && (isLit(a, ones) || isLit(b, ones)) {
			return w.AllOnes(typ)
		}
	case KindSub:
		if isLit(b, 0) {
			return a
		}
		if a == b {
			return w.Zero(typ)
		}
	case KindMul:
		if isLit(a, 0) || isLit(b, 0) {
			return w.Zero(typ)
		}
		if isLit(a, 1) {
			return b
		}
		if isLit(b, 1) {
			return a
		}
	case KindAnd:
		if isLit(a, 0) || isLit(b, 0) {
			return w.Zero(typ)
		}
		if isLit(a, ones) {
			return b
		}
		if isLit(b, ones) || a == b {
			return a
		}
	case KindShl, KindLShr, KindAShr:
		if isLit(b, 0) {
			return a
		}
		if isLit(a, 0) {
			return a
		}
	case KindSDiv, KindUDiv:
		if isLit(b, 1) {
			return a
		}
	case KindSRem, KindURem:
		if isLit(b, 1) || a == b {
			return w.Zero(typ)
		}
	}
	return nil
}

func evalInt(kind Kind, p PrimKind, ua, ub uint64) uint64 {
	sa, sb := p.signExtend(ua), p.signExtend(ub)
	switch kind {
	case KindAdd:
		return ua + ub
	case KindSub:
		return ua - ub
	case KindMul:
		return ua * ub
	case KindSDiv:
		return uint64(sa / sb) //nolint:gosec // two's complement reinterpretation
	case KindUDiv:
		return ua / ub
	case KindSRem:
		return uint64(sa % sb) //nolint:gosec // two's complement reinterpretation
	case KindURem:
		return ua % ub
	case KindAnd:
		return ua & ub
	case KindOr:
		return ua | ub
	case KindXor:
		return ua ^ ub
	case KindShl:
		return ua << ub
	case KindLShr:
		return ua >> ub
	case KindAShr:
		return uint64(sa >> ub) //nolint:gosec // two's complement reinterpretation
	default:
		panic(fmt.Sprintf("ir: cannot evaluate %s on %s", kind, p))
	}
}

func evalFloat(kind Kind, p PrimKind, a, b float64) float64 {
	var r float64
	switch kind {
	case KindAdd:
		r = a + b
	case KindSub:
		r = a - b
	case KindMul:
		r = a * b
	case KindFDiv:
		r = a / b
	case KindFRem:
		r = math.Mod(a, b)
	default:
		panic(fmt.Sprintf("ir: cannot evaluate %s on %s", kind, p))
	}
	if p == PrimF32 {
		r = float64(float32(r))
	}
	return r
}

// Cmp builds the comparison rel of a and b. Greater-than relations are
// expressed as less-than with swapped operands.
func (w *World) Cmp(rel Rel, a, b *Def) *Def {
	kind, swap := rel.normalize()
	if swap {
		a, b = b, a
	}
	return w.cmp(kind, a, b)
}

func (w *World) cmp(kind Kind, a, b *Def) *Def {
	if !kind.IsCmp() {
		panic(fmt.Sprintf("ir: %s is not a comparison", kind))
	}
	w.check(a)
	w.check(b)
	p := w.operandPrim(kind, a, b)
	boolT := w.builtins.Bool

	if a.kind == KindError || b.kind == KindError {
		return w.Error(boolT)
	}
	if a.kind == KindBottom || b.kind == KindBottom {
		return w.Bottom(boolT)
	}
	if a.kind == KindLit && b.kind == KindLit {
		if p.IsFloat() {
			return w.Bool(evalFloatCmp(kind, a.Float(), b.Float()))
		}
		return w.Bool(evalIntCmp(kind, p, a.flags, b.flags))
	}
	if a == b && !p.IsFloat() {
		switch kind {
		case KindCmpEq, KindCmpULe, KindCmpSLe:
			return w.Bool(true)
		case KindCmpNe, KindCmpULt, KindCmpSLt:
			return w.Bool(false)
		}
	}
	if kind.IsCommutative() && a.gid > b.gid {
		a, b = b, a
	}
	return w.unify(kind, boolT, []*Def{a, b}, 0)
}

func evalIntCmp(kind Kind, p PrimKind, ua, ub uint64) bool {
	sa, sb := p.signExtend(ua), p.signExtend(ub)
	switch kind {
	case KindCmpEq:
		return ua == ub
	case KindCmpNe:
		return ua != ub
	case KindCmpULt:
		return ua < ub
	case KindCmpULe:
		return ua <= ub
	case KindCmpSLt:
		return sa < sb
	case KindCmpSLe:
		return sa <= sb
	default:
		panic(fmt.Sprintf("ir: cannot evaluate %s on %s", kind, p))
	}
}

func evalFloatCmp(kind Kind, a, b float64) bool {
	switch kind {
	case KindCmpEq:
		return a == b
	case KindCmpNe:
		return a != b
	case KindCmpFLt:
		return a < b
	case KindCmpFLe:
		return a <= b
	default:
		panic(fmt.Sprintf("ir: cannot evaluate %s on floats", kind))
	}
}
