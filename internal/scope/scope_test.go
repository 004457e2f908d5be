package scope

import (
	"slices"
	"strconv"
	"testing"

	"weft/internal/ir"
)

type diamond struct {
	w                       *ir.World
	entry, t, f, join, ret  *ir.Def
	x, joinVar, cond, dummy *ir.Def
}

// buildDiamond: entry branches to t or f, both jump to join, join returns.
func buildDiamond() diamond {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	d := diamond{w: w}
	d.ret = w.Lam(w.Pi(i32), "ret")
	w.MakeExternal(d.ret)
	d.entry = w.Lam(w.Pi(i32), "entry")
	d.t = w.Lam(w.Pi(), "t")
	d.f = w.Lam(w.Pi(), "f")
	d.join = w.Lam(w.Pi(i32), "join")

	d.x = w.Var(d.entry, 0)
	d.cond = w.Cmp(ir.RelSLt, d.x, w.Zero(i32))
	w.Branch(d.entry, d.cond, d.t, d.f)
	w.Jump(d.t, d.join, w.LitInt(i32, 1))
	w.Jump(d.f, d.join, d.x)
	d.joinVar = w.Var(d.join, 0)
	w.Jump(d.join, d.ret, d.joinVar)
	d.dummy = w.Mul(d.x, w.LitInt(i32, 9))
	return d
}

func TestClosure(t *testing.T) {
	d := buildDiamond()
	s := New(d.w, d.entry)
	for _, n := range []*ir.Def{d.entry, d.t, d.f, d.join, d.ret, d.x, d.cond, d.joinVar} {
		if !s.Contains(n) {
			t.Fatalf("scope misses %s", n)
		}
	}
	if s.Contains(d.dummy) {
		t.Fatalf("unused node %s must not be in scope", d.dummy)
	}
	if s.Size() != len(s.Defs()) {
		t.Fatalf("size %d disagrees with %d defs", s.Size(), len(s.Defs()))
	}
	if !s.IsClosed() {
		t.Fatalf("diamond must be closed, free: %v", s.FreeVars())
	}
}

func TestDefsOperandsFirst(t *testing.T) {
	d := buildDiamond()
	s := New(d.w, d.entry)
	pos := make(map[*ir.Def]int)
	for i, n := range s.Defs() {
		pos[n] = i
	}
	for _, n := range s.Defs() {
		if n.IsNominal() || n.Kind() == ir.KindVar {
			continue
		}
		for _, op := range n.Ops() {
			if op.IsNominal() {
				continue
			}
			if pos[op] > pos[n] {
				t.Fatalf("operand %s listed after its user %s", op, n)
			}
		}
	}
}

func TestCFG(t *testing.T) {
	d := buildDiamond()
	s := New(d.w, d.entry)
	if got := s.Succs(d.entry); !slices.Equal(got, []*ir.Def{d.t, d.f}) {
		t.Fatalf("succs(entry) = %v", got)
	}
	if got := s.Preds(d.join); !slices.Equal(got, []*ir.Def{d.t, d.f}) {
		t.Fatalf("preds(join) = %v", got)
	}
	if got := s.Succs(d.join); !slices.Equal(got, []*ir.Def{d.ret}) {
		t.Fatalf("succs(join) = %v", got)
	}
	if got := s.Exits(); !slices.Equal(got, []*ir.Def{d.ret}) {
		t.Fatalf("exits = %v", got)
	}

	post := s.PostOrder()
	if len(post) != 5 || post[len(post)-1] != d.entry || post[0] != d.ret {
		t.Fatalf("unexpected post order %v", post)
	}
	rpo := s.ReversePostOrder()
	if rpo[0] != d.entry {
		t.Fatalf("reverse post order must start at the entry: %v", rpo)
	}
	idx := func(n *ir.Def) int { return slices.Index(rpo, n) }
	if idx(d.join) < idx(d.t) || idx(d.join) < idx(d.f) {
		t.Fatalf("join must follow both arms in rpo: %v", rpo)
	}
}

// buildFan builds n blocks that all branch on one shared condition of the
// given depth to a or b; a and b return.
func buildFan(n, depth int) (w *ir.World, blocks []*ir.Def, a, b *ir.Def) {
	w = ir.New(nil)
	i32 := w.Builtins().I32
	src := w.Lam(w.Pi(i32), "src")
	ret := w.Lam(w.Pi(i32), "ret")
	a = w.Lam(w.Pi(), "a")
	b = w.Lam(w.Pi(), "b")
	x := w.Var(src, 0)
	c := x
	for i := range depth {
		c = w.Add(w.Mul(c, x), w.LitInt(i32, int64(i+1)))
	}
	cond := w.Cmp(ir.RelSLt, c, w.Zero(i32))
	w.Jump(a, ret, c)
	w.Jump(b, ret, x)
	for i := range n {
		k := w.Lam(w.Pi(), "k"+strconv.Itoa(i))
		w.Branch(k, cond, a, b)
		blocks = append(blocks, k)
	}
	return w, blocks, a, b
}

func TestSharedConditionFrontier(t *testing.T) {
	w, blocks, a, b := buildFan(6, 50)
	s := New(w, blocks...)
	for _, k := range blocks {
		if got := s.Succs(k); !slices.Equal(got, []*ir.Def{a, b}) {
			t.Fatalf("succs(%s) = %v", k, got)
		}
	}
	if got := s.Preds(a); !slices.Equal(got, blocks) {
		t.Fatalf("preds(a) = %v", got)
	}
	if got := s.Succs(a); len(got) != 1 || got[0].Name() != "ret" {
		t.Fatalf("succs(a) = %v", got)
	}
	if len(s.PostOrder()) != len(blocks)+3 {
		t.Fatalf("post order = %v", s.PostOrder())
	}
}

func BenchmarkSharedCondition(b *testing.B) {
	for _, n := range []int{250, 1000} {
		w, blocks, _, _ := buildFan(n, 2000)
		b.Run(strconv.Itoa(n), func(b *testing.B) {
			for b.Loop() {
				New(w, blocks...)
			}
		})
	}
}

func TestVarBinderEdgeNotFollowed(t *testing.T) {
	d := buildDiamond()
	s := New(d.w, d.f)
	if s.Contains(d.entry) {
		t.Fatalf("binder reached through a variable")
	}
	if s.IsClosed() {
		t.Fatalf("f uses entry's variable and must not be closed")
	}
	if got := s.FreeVars(); !slices.Equal(got, []*ir.Def{d.x}) {
		t.Fatalf("free vars = %v", got)
	}
	if slices.Contains(s.Succs(d.f), d.entry) {
		t.Fatalf("a variable use is not a control edge")
	}
}

func TestSelfLoop(t *testing.T) {
	w := ir.New(nil)
	loop := w.Lam(w.Pi(), "loop")
	w.Jump(loop, loop)
	s := New(w, loop)
	if got := s.Succs(loop); !slices.Equal(got, []*ir.Def{loop}) {
		t.Fatalf("succs(loop) = %v", got)
	}
	if len(s.PostOrder()) != 1 || len(s.Exits()) != 0 {
		t.Fatalf("unexpected cfg: post %v exits %v", s.PostOrder(), s.Exits())
	}
}

func TestUnreachableNominalsLast(t *testing.T) {
	d := buildDiamond()
	other := d.w.Lam(d.w.Pi(), "other")
	d.w.Jump(other, d.t)
	s := New(d.w, d.entry, other)
	post := s.PostOrder()
	if len(post) != 6 || post[len(post)-1] != other {
		t.Fatalf("second entry must be numbered after the first: %v", post)
	}
	if s.Entry() != d.entry {
		t.Fatalf("entry = %s", s.Entry())
	}
}

func TestNewRejectsDeadEntry(t *testing.T) {
	d := buildDiamond()
	d.w.Destroy(d.dummy)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for destroyed entry")
		}
	}()
	New(d.w, d.dummy)
}
