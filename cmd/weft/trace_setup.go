package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"weft/internal/config"
	"weft/internal/trace"
)

// heartbeat is the running heartbeat, nil when tracing or beating is off.
var heartbeat *trace.Heartbeat

// setupTracing builds the tracer from the [trace] section, with explicitly
// set flags taking precedence, and attaches it to the command context.
func setupTracing(cmd *cobra.Command, section config.Trace) (func(), error) {
	flags := cmd.Root().PersistentFlags()

	if flags.Changed("trace") {
		v, err := flags.GetString("trace")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace flag: %w", err)
		}
		section.Output = v
	}
	if flags.Changed("trace-level") {
		v, err := flags.GetString("trace-level")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
		}
		section.Level = v
	}
	if flags.Changed("trace-mode") {
		v, err := flags.GetString("trace-mode")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
		}
		section.Mode = v
	}
	if flags.Changed("trace-format") {
		v, err := flags.GetString("trace-format")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
		}
		section.Format = v
	}
	if flags.Changed("trace-ring-size") {
		v, err := flags.GetInt("trace-ring-size")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		section.RingSize = v
	}
	if flags.Changed("trace-heartbeat") {
		v, err := flags.GetDuration("trace-heartbeat")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
		section.Heartbeat.Duration = v
	}
	// An output file without a level means the user wants phases.
	if section.Output != "" && (section.Level == "" || section.Level == "off") {
		section.Level = "phase"
	}

	cfg, err := config.Config{Trace: section}.TraceConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid trace settings: %w", err)
	}
	if cfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	heartbeat = trace.StartHeartbeat(tracer, cfg.Heartbeat)

	return func() {
		heartbeat.Stop()
		heartbeat = nil
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

// dumpRing writes the in-memory trace history to w, if the tracer keeps one.
func dumpRing(w io.Writer, t trace.Tracer) {
	var ring *trace.RingTracer
	switch t := t.(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring = t.Ring()
	}
	if ring == nil {
		return
	}
	if n := ring.Dropped(); n > 0 {
		fmt.Fprintf(w, "trace: last %d events (%d older dropped)\n", len(ring.Snapshot()), n)
	} else {
		fmt.Fprintln(w, "trace: recorded events")
	}
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}
