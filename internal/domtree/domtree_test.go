package domtree

import (
	"slices"
	"strings"
	"testing"

	"weft/internal/ir"
	"weft/internal/scope"
)

type diamond struct {
	w                      *ir.World
	entry, t, f, join, ret *ir.Def
}

func buildDiamond() diamond {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	d := diamond{w: w}
	d.ret = w.Lam(w.Pi(i32), "ret")
	d.entry = w.Lam(w.Pi(i32), "entry")
	d.t = w.Lam(w.Pi(), "t")
	d.f = w.Lam(w.Pi(), "f")
	d.join = w.Lam(w.Pi(i32), "join")

	x := w.Var(d.entry, 0)
	w.Branch(d.entry, w.Cmp(ir.RelSLt, x, w.Zero(i32)), d.t, d.f)
	w.Jump(d.t, d.join, w.LitInt(i32, 1))
	w.Jump(d.f, d.join, x)
	w.Jump(d.join, d.ret, w.Var(d.join, 0))
	return d
}

func TestDiamond(t *testing.T) {
	d := buildDiamond()
	tree := Build(scope.New(d.w, d.entry))

	if tree.Root() != d.entry || tree.Idom(d.entry) != d.entry {
		t.Fatalf("entry must be the root and its own idom")
	}
	for _, n := range []*ir.Def{d.t, d.f, d.join} {
		if got := tree.Idom(n); got != d.entry {
			t.Fatalf("idom(%s) = %s, want entry", n, got)
		}
	}
	if got := tree.Idom(d.ret); got != d.join {
		t.Fatalf("idom(ret) = %s, want join", got)
	}
	if !tree.Dominates(d.entry, d.ret) || tree.Dominates(d.t, d.join) {
		t.Fatalf("dominance queries wrong")
	}
	if !tree.Dominates(d.join, d.join) || tree.StrictlyDominates(d.join, d.join) {
		t.Fatalf("dominance must be reflexive, strict dominance must not")
	}
	if got := tree.LCA(d.t, d.f); got != d.entry {
		t.Fatalf("lca(t, f) = %s", got)
	}
	if got := tree.LCA(d.ret, d.join); got != d.join {
		t.Fatalf("lca(ret, join) = %s", got)
	}
	if tree.Depth(d.ret) != 2 || tree.MaxDepth() != 2 {
		t.Fatalf("depth(ret) = %d, max = %d", tree.Depth(d.ret), tree.MaxDepth())
	}
	children := slices.Clone(tree.Children(d.entry))
	slices.SortFunc(children, func(a, b *ir.Def) int { return int(a.GID()) - int(b.GID()) })
	if !slices.Equal(children, []*ir.Def{d.t, d.f, d.join}) {
		t.Fatalf("children(entry) = %v", children)
	}
}

func TestPostOrderNumbers(t *testing.T) {
	d := buildDiamond()
	tree := Build(scope.New(d.w, d.entry))
	if got := tree.index[d.entry]; int(got) != tree.Len()-1 {
		t.Fatalf("root numbered %d of %d", got, tree.Len())
	}
	if tree.index[d.ret] != 0 || tree.idom[tree.index[d.ret]] != tree.index[d.join] {
		t.Fatalf("ret must be numbered first and point at join: %v", tree.idom)
	}
	for n, i := range tree.index {
		if tree.nodes[i] != n {
			t.Fatalf("index of %s does not round-trip", n)
		}
	}
}

func TestPostDominators(t *testing.T) {
	d := buildDiamond()
	tree := BuildPost(scope.New(d.w, d.entry), d.ret)
	if !tree.IsPost() || tree.Root() != d.ret {
		t.Fatalf("post tree must be rooted at the exit")
	}
	for n, want := range map[*ir.Def]*ir.Def{d.t: d.join, d.f: d.join, d.entry: d.join, d.join: d.ret} {
		if got := tree.Idom(n); got != want {
			t.Fatalf("ipdom(%s) = %s, want %s", n, got, want)
		}
	}
}

func TestLoop(t *testing.T) {
	w := ir.New(nil)
	i32 := w.Builtins().I32
	entry := w.Lam(w.Pi(), "entry")
	header := w.Lam(w.Pi(i32), "header")
	body := w.Lam(w.Pi(), "body")
	exit := w.Lam(w.Pi(), "exit")

	i := w.Var(header, 0)
	w.Jump(entry, header, w.Zero(i32))
	w.Branch(header, w.Cmp(ir.RelSLt, i, w.LitInt(i32, 10)), body, exit)
	w.Jump(body, header, w.Add(i, w.LitInt(i32, 1)))

	tree := Build(scope.New(w, entry))
	if tree.Idom(body) != header || tree.Idom(exit) != header || tree.Idom(header) != entry {
		t.Fatalf("loop idoms wrong: body %s exit %s header %s", tree.Idom(body), tree.Idom(exit), tree.Idom(header))
	}
	if tree.Len() != 4 {
		t.Fatalf("expected 4 nodes, got %d", tree.Len())
	}
}

func TestSelfLoop(t *testing.T) {
	w := ir.New(nil)
	loop := w.Lam(w.Pi(), "loop")
	w.Jump(loop, loop)
	tree := Build(scope.New(w, loop))
	if tree.Idom(loop) != loop || tree.Depth(loop) != 0 || len(tree.Children(loop)) != 0 {
		t.Fatalf("self loop tree wrong")
	}
}

func TestUnreachablePanics(t *testing.T) {
	d := buildDiamond()
	other := d.w.Lam(d.w.Pi(), "other")
	d.w.Jump(other, d.t)
	s := scope.New(d.w, d.entry, other)
	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, "unreachable") {
			t.Fatalf("expected unreachable panic, got %v", r)
		}
	}()
	Build(s)
}
