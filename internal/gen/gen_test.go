package gen

import (
	"context"
	"testing"

	"weft/internal/domtree"
	"weft/internal/ir"
	"weft/internal/opt"
	"weft/internal/pass"
	"weft/internal/scope"
)

func generate(t *testing.T, cfg Config) (*ir.World, *Program) {
	t.Helper()
	reg := ir.NewRegistry()
	core, err := opt.RegisterCore(reg)
	if err != nil {
		t.Fatalf("register core: %v", err)
	}
	cfg.Core = &core
	w := ir.New(reg)
	prog, err := Generate(w, cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return w, prog
}

func TestDeterministic(t *testing.T) {
	cfg := Config{Blocks: 12, Ops: 20, Seed: 42}
	w1, p1 := generate(t, cfg)
	w2, p2 := generate(t, cfg)
	if w1.NumDefs() != w2.NumDefs() || p1.Forwarders != p2.Forwarders {
		t.Fatalf("same seed, different programs: %d/%d defs, %d/%d forwarders",
			w1.NumDefs(), w2.NumDefs(), p1.Forwarders, p2.Forwarders)
	}
	for i := range p1.Blocks {
		b1, b2 := p1.Blocks[i].Body(), p2.Blocks[i].Body()
		if b1.Kind() != b2.Kind() || b1.NumOps() != b2.NumOps() {
			t.Fatalf("block %d differs: %s vs %s", i, b1, b2)
		}
	}
}

func TestAllBlocksReachable(t *testing.T) {
	for seed := range uint64(8) {
		w, prog := generate(t, Config{Blocks: 10, Ops: 15, Seed: seed})
		s := scope.New(w, prog.Entry)
		for _, b := range prog.Blocks {
			if !s.Contains(b) {
				t.Fatalf("seed %d: block %s not reachable", seed, b)
			}
		}
		tree := domtree.Build(s)
		for _, b := range prog.Blocks {
			if !tree.Dominates(prog.Entry, b) {
				t.Fatalf("seed %d: entry does not dominate %s", seed, b)
			}
		}
		if err := ir.Verify(w, false); err != nil {
			t.Fatalf("seed %d: verify: %v", seed, err)
		}
	}
}

func TestOptimizeGenerated(t *testing.T) {
	for seed := range uint64(8) {
		w, _ := generate(t, Config{Blocks: 8, Ops: 25, Seed: seed})
		r := pass.NewRegistry()
		opt.Register(r)
		passes, err := r.Build(w, r.Names())
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		m := pass.NewManager(w, passes...)
		m.MaxIterations = 50
		if _, _, err := m.RunWorld(context.Background()); err != nil {
			t.Fatalf("seed %d: run: %v", seed, err)
		}
		if err := ir.Verify(w, false); err != nil {
			t.Fatalf("seed %d: verify: %v", seed, err)
		}
	}
}

func TestSingleBlock(t *testing.T) {
	_, prog := generate(t, Config{Blocks: 1, Ops: 3, Seed: 7})
	if prog.Entry != prog.Blocks[0] || prog.Entry.Body().Callee() != prog.Exit {
		t.Fatalf("single block must return to the exit")
	}
}

func TestInvalidConfig(t *testing.T) {
	w := ir.New(nil)
	if _, err := Generate(w, Config{Blocks: 0}); err == nil {
		t.Fatalf("zero blocks must be rejected")
	}
	if _, err := Generate(w, Config{Blocks: 1, Ops: -1}); err == nil {
		t.Fatalf("negative ops must be rejected")
	}
}
