package opt

import "weft/internal/ir"

// Reassoc rewrites (x op c1) op c2 into x op (c1 op c2) for associative and
// commutative integer operators, so that the constants fold.
type Reassoc struct{}

func (Reassoc) Name() string { return "reassoc" }

func (Reassoc) Rewrite(d *ir.Def) *ir.Def {
	switch d.Kind() {
	case ir.KindAdd, ir.KindMul, ir.KindAnd, ir.KindOr, ir.KindXor:
	default:
		return d
	}
	if p, ok := d.Prim(); !ok || p.IsFloat() {
		return d
	}
	inner, c2, ok := splitLit(d)
	if !ok || inner.Kind() != d.Kind() {
		return d
	}
	x, c1, ok := splitLit(inner)
	if !ok {
		return d
	}
	w := d.World()
	return w.Arith(d.Kind(), x, w.Arith(d.Kind(), c1, c2))
}

// splitLit returns the non-literal and the literal operand of d.
func splitLit(d *ir.Def) (x, c *ir.Def, ok bool) {
	a, b := d.Op(0), d.Op(1)
	switch {
	case b.IsLit() && !a.IsLit():
		return a, b, true
	case a.IsLit() && !b.IsLit():
		return b, a, true
	default:
		return nil, nil, false
	}
}
