package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"weft/internal/stress"
)

func newModel(t *testing.T, universes int, events chan stress.Event, cancel func()) *progressModel {
	t.Helper()
	m, ok := NewProgressModel("stress 3 worlds", universes, 7, events, cancel).(*progressModel)
	if !ok {
		t.Fatalf("unexpected model type")
	}
	return m
}

func TestProgressTracksStages(t *testing.T) {
	m := newModel(t, 3, nil, nil)
	steps := []struct {
		ev      stress.Event
		percent float64
	}{
		{stress.Event{Universe: 0, Seed: 7, Stage: stress.StageGenerate}, 0.2 / 3},
		{stress.Event{Universe: 0, Seed: 7, Stage: stress.StageOptimize}, 0.5 / 3},
		{stress.Event{Universe: 1, Seed: 8, Stage: stress.StageVerify}, 1.4 / 3},
		{stress.Event{Universe: 0, Seed: 7, Stage: stress.StageDone}, 1.9 / 3},
		{stress.Event{Universe: 2, Seed: 9, Stage: stress.StageFailed, Err: errors.New("boom")}, 2.9 / 3},
		// Out of range and late events are ignored.
		{stress.Event{Universe: 5, Stage: stress.StageDone}, 2.9 / 3},
		{stress.Event{Universe: 0, Seed: 7, Stage: stress.StageVerify}, 2.9 / 3},
	}
	for i, step := range steps {
		m.Update(eventMsg(step.ev))
		if got := m.percent(); got < step.percent-1e-9 || got > step.percent+1e-9 {
			t.Fatalf("step %d: percent %v, want %v", i, got, step.percent)
		}
	}
	if m.worlds[0].stage != stress.StageDone || m.worlds[2].err == nil || m.failed != 1 {
		t.Fatalf("unexpected state: %+v failed=%d", m.worlds, m.failed)
	}

	view := m.View()
	for _, want := range []string{
		"stress 3 worlds",
		"world 1 (seed 8)",
		"verifying",
		"world 2 (seed 9): boom",
		"1 done, 1 failed, 0 queued of 3",
	} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "world 0 ") {
		t.Fatalf("finished world listed:\n%s", view)
	}
}

func TestProgressListsBoundedRows(t *testing.T) {
	m := newModel(t, maxRows+5, nil, nil)
	for i := range maxRows + 3 {
		m.Update(eventMsg(stress.Event{Universe: i, Seed: uint64(7 + i), Stage: stress.StageOptimize}))
	}
	view := m.View()
	if got := strings.Count(view, "optimizing"); got != maxRows {
		t.Fatalf("listed %d rows, want %d", got, maxRows)
	}
	if !strings.Contains(view, "0 done, 0 failed, 2 queued of 17") {
		t.Fatalf("bad summary:\n%s", view)
	}
}

func TestProgressQuitsWhenEventsClose(t *testing.T) {
	events := make(chan stress.Event, 1)
	m := newModel(t, 1, events, nil)

	events <- stress.Event{Universe: 0, Seed: 7, Stage: stress.StageGenerate}
	if msg := m.listenForEvent()(); msg != eventMsg(stress.Event{Universe: 0, Seed: 7, Stage: stress.StageGenerate}) {
		t.Fatalf("got %#v, want the queued event", msg)
	}
	close(events)
	msg := m.listenForEvent()()
	if _, ok := msg.(doneMsg); !ok {
		t.Fatalf("got %#v, want doneMsg", msg)
	}

	_, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if view := m.View(); !strings.HasPrefix(stripStyle(view), "done: ") {
		t.Fatalf("view after done:\n%s", view)
	}
}

func TestProgressCtrlCCancels(t *testing.T) {
	cancelled := 0
	m := newModel(t, 2, nil, func() { cancelled++ })

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cancelled != 0 || m.stopped {
		t.Fatalf("plain key cancelled the run")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cancelled != 1 || !m.stopped {
		t.Fatalf("ctrl+c: cancelled=%d stopped=%v", cancelled, m.stopped)
	}
	if !strings.Contains(m.View(), "stopping: ") {
		t.Fatalf("view does not show stopping")
	}
}

func TestProgressWindowResize(t *testing.T) {
	m := newModel(t, 1, nil, nil)
	m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	if m.width != 30 || m.prog.Width != 26 {
		t.Fatalf("width=%d bar=%d", m.width, m.prog.Width)
	}
	m.Update(tea.WindowSizeMsg{Width: 0, Height: 10})
	if m.width != 30 {
		t.Fatalf("zero width applied")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
	}{
		{"short", 10},
		{"exactly", 7},
		{"a long universe label", 10},
		{"abcdef", 3},
		{"日本語テキスト", 9},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.width)
		if w := runewidth.StringWidth(got); w > tt.width {
			t.Fatalf("truncate(%q, %d) = %q has width %d", tt.in, tt.width, got, w)
		}
		fits := runewidth.StringWidth(tt.in) <= tt.width
		if fits && got != tt.in {
			t.Fatalf("truncate(%q, %d) = %q, want it unchanged", tt.in, tt.width, got)
		}
		if !fits && tt.width > 3 && !strings.HasSuffix(got, "...") {
			t.Fatalf("truncate(%q, %d) = %q, want an ellipsis", tt.in, tt.width, got)
		}
	}
	if got := truncate("anything", 0); got != "anything" {
		t.Fatalf("zero width truncated to %q", got)
	}
}

// stripStyle drops ANSI escape sequences.
func stripStyle(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
