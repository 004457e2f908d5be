// Package ui renders live stress progress in a terminal.
package ui

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"weft/internal/stress"
)

// maxRows bounds the universes listed individually; the rest are counted.
const maxRows = 12

type progressModel struct {
	title   string
	events  <-chan stress.Event
	cancel  func()
	spinner spinner.Model
	prog    progress.Model
	worlds  []world
	width   int
	failed  int
	done    bool
	stopped bool
}

type world struct {
	seed  uint64
	stage stress.Stage
	err   error
}

type eventMsg stress.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows universes
// seeded firstSeed, firstSeed+1, ... through the events channel. The model
// quits once events is closed. cancel, if set, runs on ctrl+c.
func NewProgressModel(title string, universes int, firstSeed uint64, events <-chan stress.Event, cancel func()) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	worlds := make([]world, universes)
	for i := range worlds {
		worlds[i] = world{seed: firstSeed + safecast.MustConv[uint64](i)}
	}
	return &progressModel{
		title:   title,
		events:  events,
		cancel:  cancel,
		spinner: sp,
		prog:    prog,
		worlds:  worlds,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(stress.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stopped = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.worlds) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := truncate(m.title, m.width-4)
	switch {
	case m.done:
		header = "done: " + header
	case m.stopped:
		header = "stopping: " + header
	default:
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-16, 20)
	rows := 0
	var queued, finished int
	for i, w := range m.worlds {
		switch {
		case w.stage == stress.StageQueued:
			queued++
			continue
		case w.stage == stress.StageDone:
			finished++
			continue
		}
		if rows == maxRows {
			continue
		}
		rows++
		label := fmt.Sprintf("world %d (seed %d)", i, w.seed)
		if w.err != nil {
			label += ": " + w.err.Error()
		}
		status := w.stage.String()
		fmt.Fprintf(&b, "  %s %s\n", styleStatus(w.stage).Render(fmt.Sprintf("%12s", status)), truncate(label, nameWidth))
	}
	if rows > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %d done, %d failed, %d queued of %d\n\n", finished, m.failed, queued, len(m.worlds))

	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev stress.Event) tea.Cmd {
	if ev.Universe < 0 || ev.Universe >= len(m.worlds) {
		return nil
	}
	w := &m.worlds[ev.Universe]
	if w.stage.Finished() {
		return nil
	}
	w.seed = ev.Seed
	w.stage = ev.Stage
	if ev.Stage == stress.StageFailed {
		w.err = ev.Err
		m.failed++
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	total := 0.0
	for _, w := range m.worlds {
		total += progressFromStage(w.stage)
	}
	return total / float64(len(m.worlds))
}

func progressFromStage(stage stress.Stage) float64 {
	switch stage {
	case stress.StageGenerate:
		return 0.2
	case stress.StageOptimize:
		return 0.5
	case stress.StageVerify:
		return 0.9
	case stress.StageDone, stress.StageFailed:
		return 1.0
	default:
		return 0.0
	}
}

func styleStatus(stage stress.Stage) lipgloss.Style {
	switch stage {
	case stress.StageDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case stress.StageFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case stress.StageGenerate, stress.StageOptimize, stress.StageVerify:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
