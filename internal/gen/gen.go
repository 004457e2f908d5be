// Package gen builds seeded random CPS programs for stress runs.
//
// A program is a chain of blocks of type cn(i32, i32, [i32, i32]). Every
// block computes a random expression DAG over its parameters and ends in a
// jump or a branch. Block i always reaches block i+1, so every block is
// reachable from the entry; branches may also jump backwards and create
// loops. The last block returns to the external exit continuation.
package gen

import (
	"fmt"
	"math/rand/v2"

	"weft/internal/ir"
	"weft/internal/opt"
)

// Config controls program shape.
type Config struct {
	Blocks int    // number of blocks, at least one
	Ops    int    // random operations per block
	Seed   uint64 // same seed, same program
	// Core, if set, makes the generator emit core axioms.
	Core *opt.Core
}

// Program is a generated program.
type Program struct {
	Entry  *ir.Def
	Exit   *ir.Def
	Blocks []*ir.Def
	// Forwarders counts blocks that only pass their parameters on.
	Forwarders int
}

type generator struct {
	w    *ir.World
	cfg  Config
	rng  *rand.Rand
	i32  *ir.Def
	f64  *ir.Def
	pair *ir.Def
	blk  *ir.Def // block type
	prog *Program
}

var intKinds = []ir.Kind{
	ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindSDiv, ir.KindUDiv, ir.KindSRem, ir.KindURem,
	ir.KindAnd, ir.KindOr, ir.KindXor, ir.KindShl, ir.KindLShr, ir.KindAShr,
}

var floatKinds = []ir.Kind{ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindFDiv, ir.KindFRem}

var intRels = []ir.Rel{
	ir.RelEq, ir.RelNe, ir.RelULt, ir.RelULe, ir.RelUGt, ir.RelUGe,
	ir.RelSLt, ir.RelSLe, ir.RelSGt, ir.RelSGe,
}

var floatRels = []ir.Rel{ir.RelFLt, ir.RelFLe, ir.RelFGt, ir.RelFGe}

// Generate builds a program in w. The entry and exit are made external.
func Generate(w *ir.World, cfg Config) (*Program, error) {
	if cfg.Blocks < 1 {
		return nil, fmt.Errorf("gen: need at least one block, got %d", cfg.Blocks)
	}
	if cfg.Ops < 0 {
		return nil, fmt.Errorf("gen: negative op count %d", cfg.Ops)
	}
	b := w.Builtins()
	g := &generator{
		w:    w,
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		i32:  b.I32,
		f64:  b.F64,
		pair: w.Sigma(b.I32, b.I32),
		prog: &Program{},
	}
	g.blk = w.Pi(g.i32, g.i32, g.pair)

	g.prog.Exit = w.Lam(w.Pi(g.i32), "exit")
	w.MakeExternal(g.prog.Exit)
	for i := range cfg.Blocks {
		g.prog.Blocks = append(g.prog.Blocks, w.Lam(g.blk, fmt.Sprintf("b%d", i)))
	}
	g.prog.Entry = g.prog.Blocks[0]
	w.MakeExternal(g.prog.Entry)

	for i, lam := range g.prog.Blocks {
		g.block(i, lam)
	}
	return g.prog, nil
}

// pools of values available inside one block
type pools struct {
	ints, floats, bools, pairs []*ir.Def
}

func (g *generator) pick(vals []*ir.Def) *ir.Def {
	return vals[g.rng.IntN(len(vals))]
}

func (g *generator) block(i int, lam *ir.Def) {
	w := g.w
	vars := w.Vars(lam)
	p := &pools{
		ints:   []*ir.Def{vars[0], vars[1], w.LitInt(g.i32, int64(g.rng.IntN(16)))},
		floats: []*ir.Def{w.LitFloat(g.f64, 1.5), w.LitFloat(g.f64, g.rng.Float64())},
		bools:  []*ir.Def{w.Cmp(ir.RelSLt, vars[0], vars[1])},
		pairs:  []*ir.Def{vars[2]},
	}
	for range g.cfg.Ops {
		g.op(p)
	}

	last := i == len(g.prog.Blocks)-1
	if last {
		w.Jump(lam, g.prog.Exit, g.pick(p.ints))
		return
	}
	next := g.target(g.prog.Blocks[i+1])
	cond := g.pick(p.bools)
	if cond.IsLit() || cond.IsError() || cond.IsBottom() || g.rng.IntN(3) == 0 {
		w.Jump(lam, next, g.args(p)...)
		return
	}
	other := g.prog.Exit
	var otherArgs []*ir.Def
	if g.rng.IntN(4) != 0 {
		other = g.target(g.prog.Blocks[g.rng.IntN(len(g.prog.Blocks))])
		otherArgs = g.args(p)
	} else {
		otherArgs = []*ir.Def{g.pick(p.ints)}
	}
	then := w.Lam(w.Pi(), fmt.Sprintf("b%d.then", i))
	els := w.Lam(w.Pi(), fmt.Sprintf("b%d.else", i))
	w.Jump(then, next, g.args(p)...)
	w.Jump(els, other, otherArgs...)
	w.Branch(lam, cond, then, els)
}

func (g *generator) args(p *pools) []*ir.Def {
	return []*ir.Def{g.pick(p.ints), g.pick(p.ints), g.pick(p.pairs)}
}

// target sometimes interposes a forwarding block in front of dst.
func (g *generator) target(dst *ir.Def) *ir.Def {
	if g.rng.IntN(4) != 0 {
		return dst
	}
	fwd := g.w.Lam(g.blk, dst.Name()+".fwd")
	g.w.Jump(fwd, dst, g.w.Vars(fwd)...)
	g.prog.Forwarders++
	return fwd
}

func (g *generator) op(p *pools) {
	w := g.w
	switch n := g.rng.IntN(10); n {
	case 0, 1:
		k := intKinds[g.rng.IntN(len(intKinds))]
		p.ints = append(p.ints, w.Arith(k, g.pick(p.ints), g.pick(p.ints)))
	case 2:
		// strength-reduction and reassociation candidates
		x := g.pick(p.ints)
		c := w.LitInt(g.i32, int64(1)<<g.rng.IntN(6))
		switch g.rng.IntN(3) {
		case 0:
			p.ints = append(p.ints, w.Mul(x, c))
		case 1:
			p.ints = append(p.ints, w.Arith(ir.KindUDiv, x, c))
		default:
			p.ints = append(p.ints, w.Add(w.Add(x, c), w.LitInt(g.i32, int64(g.rng.IntN(100)))))
		}
	case 3:
		rel := intRels[g.rng.IntN(len(intRels))]
		p.bools = append(p.bools, w.Cmp(rel, g.pick(p.ints), g.pick(p.ints)))
	case 4:
		p.ints = append(p.ints, w.Select(g.pick(p.bools), g.pick(p.ints), g.pick(p.ints)))
	case 5:
		switch g.rng.IntN(3) {
		case 0:
			p.pairs = append(p.pairs, w.Tuple(g.pick(p.ints), g.pick(p.ints)))
		case 1:
			p.pairs = append(p.pairs, w.Insert(g.pick(p.pairs), g.rng.IntN(2), g.pick(p.ints)))
		default:
			p.ints = append(p.ints, w.Extract(g.pick(p.pairs), g.rng.IntN(2)))
		}
	case 6:
		k := floatKinds[g.rng.IntN(len(floatKinds))]
		p.floats = append(p.floats, w.Arith(k, g.pick(p.floats), g.pick(p.floats)))
	case 7:
		rel := floatRels[g.rng.IntN(len(floatRels))]
		p.bools = append(p.bools, w.Cmp(rel, g.pick(p.floats), g.pick(p.floats)))
	case 8:
		if g.cfg.Core == nil {
			p.ints = append(p.ints, w.Sub(g.pick(p.ints), g.pick(p.ints)))
			return
		}
		core := g.cfg.Core
		switch g.rng.IntN(3) {
		case 0:
			p.ints = append(p.ints, w.Axiom(core.Abs, g.i32, g.pick(p.ints)))
		case 1:
			p.ints = append(p.ints, w.Axiom(core.SMin, g.i32, g.pick(p.ints), g.pick(p.ints)))
		default:
			p.ints = append(p.ints, w.Axiom(core.SMax, g.i32, g.pick(p.ints), g.pick(p.ints)))
		}
	default:
		switch g.rng.IntN(3) {
		case 0:
			p.ints = append(p.ints, w.Bottom(g.i32))
		case 1:
			p.bools = append(p.bools, w.Bool(g.rng.IntN(2) == 0))
		default:
			p.ints = append(p.ints, w.LitInt(g.i32, g.rng.Int64()))
		}
	}
}
