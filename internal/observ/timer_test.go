package observ

import (
	"bytes"
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("iteration 1")
	tm.End(a, "3 replaced")
	b := tm.Begin("cleanup")
	tm.End(b, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Note != "3 replaced" {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("total smaller than a phase")
	}
	var buf bytes.Buffer
	r.Print(&buf)
	s := buf.String()
	if !strings.Contains(s, "iteration 1") || !strings.Contains(s, "(3 replaced)") || !strings.Contains(s, "total") {
		t.Fatalf("table incomplete:\n%s", s)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	idx := tm.Begin("x")
	tm.End(idx, "")
	if tm.Len() != 0 || len(tm.Report().Phases) != 0 {
		t.Fatalf("nil timer must record nothing")
	}
}

func TestReportAddAndMerge(t *testing.T) {
	var all Report
	all.Add(Report{TotalMS: 3, Phases: []PhaseReport{{Name: "peephole", DurationMS: 1}, {Name: "cleanup", DurationMS: 2}}})
	all.Add(Report{TotalMS: 3, Phases: []PhaseReport{{Name: "peephole", DurationMS: 3, Note: "x"}}})
	m := all.Merge()
	if len(m.Phases) != 2 || m.Phases[0].Name != "peephole" || m.Phases[0].DurationMS != 4 || m.Phases[0].Note != "" {
		t.Fatalf("unexpected merge %+v", m)
	}
	if m.TotalMS != 6 {
		t.Fatalf("total = %v", m.TotalMS)
	}
}
