package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"weft/internal/stress"
	"weft/internal/ui"
)

type stressOutcome struct {
	report *stress.Report
	err    error
}

// runStressWithUI runs the stress driver while a progress view draws on
// out. ctrl+c in the view cancels the run.
func runStressWithUI(ctx context.Context, out io.Writer, opts stress.Options) (*stress.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan stress.Event, 256)
	outcomeCh := make(chan stressOutcome, 1)

	go func() {
		runOpts := opts
		runOpts.Progress = stress.ChannelSink{Ch: events}
		report, err := stress.Run(ctx, runOpts)
		outcomeCh <- stressOutcome{report: report, err: err}
		close(events)
	}()

	title := fmt.Sprintf("stress %d worlds: %s", opts.Universes, strings.Join(opts.Passes, ", "))
	model := ui.NewProgressModel(title, opts.Universes, opts.Seed, events, cancel)
	program := tea.NewProgram(model, tea.WithOutput(out))
	_, uiErr := program.Run()
	if uiErr != nil {
		cancel()
	}
	for range events {
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
