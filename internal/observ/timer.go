// Package observ measures where a pipeline spends its time.
package observ

import (
	"fmt"
	"io"
	"time"
)

type phase struct {
	name  string
	start time.Time
	dur   time.Duration
	note  string
}

// Timer records named phases of one world's pipeline in start order. It is
// not safe for concurrent use. A nil *Timer records nothing.
type Timer struct {
	phases []phase
}

func NewTimer() *Timer { return &Timer{} }

// Begin opens a phase; the returned handle is passed to End.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.phases = append(t.phases, phase{name: name, start: time.Now()})
	return len(t.phases) - 1
}

// End closes the phase h with an optional note. Unknown handles are ignored.
func (t *Timer) End(h int, note string) {
	if t == nil || h < 0 || h >= len(t.phases) {
		return
	}
	t.phases[h].dur = time.Since(t.phases[h].start)
	t.phases[h].note = note
}

func (t *Timer) Len() int {
	if t == nil {
		return 0
	}
	return len(t.phases)
}

// PhaseReport is one finished phase.
type PhaseReport struct {
	Name       string  `json:"name" msgpack:"name"`
	DurationMS float64 `json:"duration_ms" msgpack:"duration_ms"`
	Note       string  `json:"note,omitempty" msgpack:"note,omitempty"`
}

// Report is the exported form of a Timer, carried in stress reports.
type Report struct {
	TotalMS float64       `json:"total_ms" msgpack:"total_ms"`
	Phases  []PhaseReport `json:"phases" msgpack:"phases"`
}

func millis(d time.Duration) float64 { return d.Seconds() * 1e3 }

// Report snapshots the recorded phases.
func (t *Timer) Report() Report {
	var r Report
	for _, p := range t.phasesOrNil() {
		r.Phases = append(r.Phases, PhaseReport{Name: p.name, DurationMS: millis(p.dur), Note: p.note})
		r.TotalMS += millis(p.dur)
	}
	return r
}

func (t *Timer) phasesOrNil() []phase {
	if t == nil {
		return nil
	}
	return t.phases
}

// Add appends o's phases to r.
func (r *Report) Add(o Report) {
	r.Phases = append(r.Phases, o.Phases...)
	r.TotalMS += o.TotalMS
}

// Merge sums phases of the same name, in first-seen order. Merged phases
// lose their notes.
func (r Report) Merge() Report {
	out := Report{TotalMS: r.TotalMS}
	at := make(map[string]int, len(r.Phases))
	for _, p := range r.Phases {
		i, seen := at[p.Name]
		if !seen {
			at[p.Name] = len(out.Phases)
			out.Phases = append(out.Phases, p)
			continue
		}
		out.Phases[i].DurationMS += p.DurationMS
		out.Phases[i].Note = ""
	}
	return out
}

// Print writes r as an aligned table with a total row.
func (r Report) Print(w io.Writer) {
	for _, p := range r.Phases {
		fmt.Fprintf(w, "  %-20s %9.3f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			fmt.Fprintf(w, "  (%s)", p.Note)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  %-20s %9.3f ms\n", "total", r.TotalMS)
}
