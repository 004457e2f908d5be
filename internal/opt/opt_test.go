package opt

import (
	"context"
	"slices"
	"testing"

	"weft/internal/ir"
	"weft/internal/pass"
)

func param(w *ir.World) (*ir.Def, *ir.Def) {
	lam := w.Lam(w.Pi(w.Builtins().I32), "f")
	return lam, w.Var(lam, 0)
}

func TestPeephole(t *testing.T) {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	_, x := param(w)
	lit := func(v int64) *ir.Def { return w.LitInt(i32, v) }

	tests := []struct {
		name string
		in   *ir.Def
		want *ir.Def
	}{
		{"mul", w.Mul(x, lit(8)), w.Arith(ir.KindShl, x, lit(3))},
		{"mul lhs", w.Mul(lit(4), x), w.Arith(ir.KindShl, x, lit(2))},
		{"udiv", w.Arith(ir.KindUDiv, x, lit(16)), w.Arith(ir.KindLShr, x, lit(4))},
		{"urem", w.Arith(ir.KindURem, x, lit(32)), w.Arith(ir.KindAnd, x, lit(31))},
		{"not pow2", w.Mul(x, lit(6)), w.Mul(x, lit(6))},
		{"sdiv", w.Arith(ir.KindSDiv, x, lit(4)), w.Arith(ir.KindSDiv, x, lit(4))},
		{"add", w.Add(x, lit(4)), w.Add(x, lit(4))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Peephole{}).Rewrite(tt.in); got != tt.want {
				t.Fatalf("rewrite(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestPeepholeSkipsFloats(t *testing.T) {
	w := ir.New(nil)
	f64 := w.Builtins().F64
	lam := w.Lam(w.Pi(f64), "f")
	y := w.Var(lam, 0)
	d := w.Mul(y, w.LitFloat(f64, 2))
	if got := (Peephole{}).Rewrite(d); got != d {
		t.Fatalf("float multiply rewritten to %s", got)
	}
}

func TestReassoc(t *testing.T) {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	_, x := param(w)
	lit := func(v int64) *ir.Def { return w.LitInt(i32, v) }

	tests := []struct {
		name string
		in   *ir.Def
		want *ir.Def
	}{
		{"add", w.Add(w.Add(x, lit(3)), lit(4)), w.Add(x, lit(7))},
		{"mul", w.Mul(w.Mul(x, lit(3)), lit(5)), w.Mul(x, lit(15))},
		{"xor cancels", w.Arith(ir.KindXor, w.Arith(ir.KindXor, x, lit(5)), lit(5)), x},
		{"mixed", w.Mul(w.Add(x, lit(3)), lit(4)), w.Mul(w.Add(x, lit(3)), lit(4))},
		{"sub", w.Sub(w.Sub(x, lit(3)), lit(4)), w.Sub(w.Sub(x, lit(3)), lit(4))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Reassoc{}).Rewrite(tt.in); got != tt.want {
				t.Fatalf("rewrite(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestThreadJumps(t *testing.T) {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	ret := w.Lam(w.Pi(i32), "ret")
	k1 := w.Lam(w.Pi(i32), "k1")
	k2 := w.Lam(w.Pi(i32), "k2")
	w.Jump(k1, k2, w.Var(k1, 0))
	w.Jump(k2, ret, w.Var(k2, 0))

	main := w.Lam(w.Pi(i32), "main")
	jump := w.Jump(main, k1, w.Var(main, 0)).Body()

	tj := NewThreadJumps()
	got := tj.Rewrite(jump)
	if got.Callee() != ret || got.Args()[0] != w.Var(main, 0) {
		t.Fatalf("jump threaded to %s", got.Callee())
	}
}

func TestThreadJumpsKeepsNonForwarders(t *testing.T) {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	ret := w.Lam(w.Pi(i32, i32), "ret")
	swap := w.Lam(w.Pi(i32, i32), "swap")
	w.Jump(swap, ret, w.Var(swap, 1), w.Var(swap, 0))

	main := w.Lam(w.Pi(i32), "main")
	x := w.Var(main, 0)
	jump := w.Jump(main, swap, x, x).Body()
	if got := NewThreadJumps().Rewrite(jump); got != jump {
		t.Fatalf("argument permutation must not be threaded, got %s", got.Callee())
	}
}

func TestThreadJumpsCycle(t *testing.T) {
	w := ir.New(nil)
	a := w.Lam(w.Pi(), "a")
	b := w.Lam(w.Pi(), "b")
	w.Jump(a, b)
	w.Jump(b, a)
	main := w.Lam(w.Pi(), "main")
	jump := w.Jump(main, a).Body()
	if got := NewThreadJumps().Rewrite(jump); got != jump {
		t.Fatalf("cycle must be left alone, got %s", got.Callee())
	}
}

func TestThreadJumpsSelect(t *testing.T) {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	exit := w.Lam(w.Pi(), "exit")
	other := w.Lam(w.Pi(), "other")
	fwd := w.Lam(w.Pi(), "fwd")
	w.Jump(fwd, exit)

	main := w.Lam(w.Pi(i32), "main")
	cond := w.Cmp(ir.RelEq, w.Var(main, 0), w.Zero(i32))
	sel := w.Select(cond, fwd, other)
	got := NewThreadJumps().Rewrite(sel)
	if got.Kind() != ir.KindSelect || got.Op(1) != exit || got.Op(2) != other {
		t.Fatalf("select arms not threaded: %s", got)
	}
}

func TestPipeline(t *testing.T) {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	ret := w.Lam(w.Pi(i32), "ret")
	w.MakeExternal(ret)
	fwd := w.Lam(w.Pi(i32), "fwd")
	w.Jump(fwd, ret, w.Var(fwd, 0))
	main := w.Lam(w.Pi(i32), "main")
	w.MakeExternal(main)
	x := w.Var(main, 0)
	w.Jump(main, fwd, w.Mul(w.Add(x, w.LitInt(i32, 1)), w.LitInt(i32, 8)))

	r := pass.NewRegistry()
	Register(r)
	if got := r.Names(); !slices.Equal(got, []string{"peephole", "reassoc", "thread-jumps"}) {
		t.Fatalf("names = %v", got)
	}
	passes, err := r.Build(w, []string{"reassoc", "peephole", "thread-jumps"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	stats, cs, err := pass.NewManager(w, passes...).RunWorld(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.PerPass["peephole"] != 1 || stats.PerPass["thread-jumps"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !fwd.IsDead() || cs.UnreachableLams == 0 {
		t.Fatalf("forwarder must be swept, cleanup %+v", cs)
	}
	var entry *ir.Def
	for _, e := range w.Externals() {
		if e.Name() == "main" {
			entry = e
		}
	}
	body := entry.Body()
	nx := w.Var(entry, 0)
	want := w.Arith(ir.KindShl, w.Add(nx, w.LitInt(i32, 1)), w.LitInt(i32, 3))
	if body.Callee() != ret || body.Args()[0] != want {
		t.Fatalf("unexpected body %s(%v)", body.Callee(), body.Args())
	}
	if err := ir.Verify(w, false); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestCoreAxioms(t *testing.T) {
	reg := ir.NewRegistry()
	core, err := RegisterCore(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := RegisterCore(reg); err == nil {
		t.Fatalf("second registration must fail")
	}
	w := ir.New(reg)
	i32 := w.Builtins().I32
	_, x := param(w)
	lit := func(v int64) *ir.Def { return w.LitInt(i32, v) }

	if got := w.Axiom(core.Abs, i32, lit(-5)); got != lit(5) {
		t.Fatalf("abs(-5) = %s", got)
	}
	if got := w.Axiom(core.SMin, i32, lit(-2), lit(3)); got != lit(-2) {
		t.Fatalf("smin = %s", got)
	}
	if got := w.Axiom(core.SMax, i32, lit(-2), lit(3)); got != lit(3) {
		t.Fatalf("smax = %s", got)
	}
	if got := w.Axiom(core.SMax, i32, x, x); got != x {
		t.Fatalf("smax(x, x) = %s", got)
	}
	a, b := w.Axiom(core.Abs, i32, x), w.Axiom(core.Abs, i32, x)
	if a != b || a.Kind() != ir.KindAxiom {
		t.Fatalf("abs(x) must be a hash-consed axiom node")
	}
	if name, _ := reg.Name(core.SMin); name != "smin" {
		t.Fatalf("name = %q", name)
	}
}
