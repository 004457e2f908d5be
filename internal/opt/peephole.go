// Package opt holds the rewrite passes shipped with weft.
package opt

import (
	"math/bits"

	"weft/internal/ir"
	"weft/internal/pass"
)

// Register adds the passes of this package to r.
func Register(r *pass.Registry) {
	r.MustRegister("peephole", "strength reduction of multiplication, division and remainder by powers of two",
		func(*ir.World) pass.Pass { return Peephole{} })
	r.MustRegister("reassoc", "fold constants through chains of associative operators",
		func(*ir.World) pass.Pass { return Reassoc{} })
	r.MustRegister("thread-jumps", "jump past continuations that only forward their parameters",
		func(*ir.World) pass.Pass { return NewThreadJumps() })
}

// Peephole replaces multiplication, unsigned division and unsigned remainder
// by a power of two with shifts and masks.
type Peephole struct{}

func (Peephole) Name() string { return "peephole" }

func (Peephole) Rewrite(d *ir.Def) *ir.Def {
	switch d.Kind() {
	case ir.KindMul, ir.KindUDiv, ir.KindURem:
	default:
		return d
	}
	if p, ok := d.Prim(); !ok || p.IsFloat() {
		return d
	}
	w := d.World()
	x, c := d.Op(0), d.Op(1)
	if d.Kind() == ir.KindMul && x.IsLit() {
		x, c = c, x
	}
	if !c.IsLit() {
		return d
	}
	k, ok := log2(c.Bits())
	if !ok {
		return d
	}
	typ := d.Type()
	switch d.Kind() {
	case ir.KindMul:
		return w.Arith(ir.KindShl, x, w.Lit(typ, k))
	case ir.KindUDiv:
		return w.Arith(ir.KindLShr, x, w.Lit(typ, k))
	default:
		return w.Arith(ir.KindAnd, x, w.Lit(typ, c.Bits()-1))
	}
}

// log2 returns k for v == 1<<k with k > 0.
func log2(v uint64) (uint64, bool) {
	if v < 2 || v&(v-1) != 0 {
		return 0, false
	}
	return uint64(bits.TrailingZeros64(v)), true
}
