package ir

import (
	"strconv"

	"weft/internal/trace"
)

// CleanupStats reports what a cleanup sweep removed.
type CleanupStats struct {
	UnreachableLams int
	DeadDefs        int
	Live            int
}

// Cleanup removes unreachable continuations and then every node no root can
// reach. Afterwards the table holds exactly the nodes reachable from the
// externals, the reachable roots and the builtins.
func (w *World) Cleanup() CleanupStats {
	span := trace.Begin(w.tracer, trace.ScopePass, "cleanup", 0)
	var stats CleanupStats
	stats.UnreachableLams = w.uce()
	stats.DeadDefs = w.dce()
	stats.Live = w.NumDefs()
	span.WithExtra("uce", strconv.Itoa(stats.UnreachableLams)).
		WithExtra("dce", strconv.Itoa(stats.DeadDefs)).
		End(strconv.Itoa(stats.Live) + " live")
	return stats
}

func (w *World) nextEpoch() uint32 {
	w.epoch++
	return w.epoch
}

// uce marks every lambda reachable from the control-flow roots and the
// externals, then destroys the rest. Bodies are walked through their
// operands; a variable leads to its binder.
func (w *World) uce() int {
	epoch := w.nextEpoch()
	var work []*Def
	push := func(d *Def) {
		if d == nil || d.mark == epoch {
			return
		}
		d.mark = epoch
		work = append(work, d)
	}
	for d := range w.reachable {
		push(d)
	}
	for d := range w.externals {
		push(d)
	}
	for len(work) > 0 {
		d := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range d.flows {
			push(f)
		}
		if !d.set {
			continue
		}
		for _, op := range d.ops {
			push(op)
		}
	}

	var doomed []*Def
	for _, d := range w.defs {
		if d != nil && d.kind == KindLam && d.mark != epoch {
			doomed = append(doomed, d)
		}
	}
	for _, d := range doomed {
		w.Destroy(d)
	}
	return len(doomed)
}

// dce marks every node reachable through type, operand and flow edges from
// the roots and destroys everything else.
func (w *World) dce() int {
	epoch := w.nextEpoch()
	var work []*Def
	push := func(d *Def) {
		if d == nil || d.dead || d.mark == epoch {
			return
		}
		d.mark = epoch
		work = append(work, d)
	}
	for _, d := range w.pinned {
		push(d)
	}
	for d := range w.externals {
		push(d)
	}
	for d := range w.reachable {
		push(d)
	}
	for len(work) > 0 {
		d := work[len(work)-1]
		work = work[:len(work)-1]
		push(d.typ)
		if d.set {
			for _, op := range d.ops {
				push(op)
			}
		}
		for _, f := range d.flows {
			push(f)
		}
	}

	var doomed []*Def
	for _, d := range w.defs {
		if d != nil && d.mark != epoch {
			doomed = append(doomed, d)
		}
	}
	for _, d := range doomed {
		w.Destroy(d)
	}
	return len(doomed)
}
