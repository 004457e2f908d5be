// Package prof wires the Go profilers behind the CLI's profiling flags.
package prof

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names the output files; an empty path disables that profile.
type Options struct {
	CPU   string
	Mem   string
	Trace string
}

// Session is a set of running profilers. Stop unwinds them in reverse.
type Session struct {
	stops []func() error
}

// Start launches the CPU profiler and runtime tracer. The heap profile is
// taken by Stop, after the work is done.
func Start(opts Options) (*Session, error) {
	s := &Session{}
	if opts.CPU != "" {
		if err := s.launch(opts.CPU, pprof.StartCPUProfile, pprof.StopCPUProfile); err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
	}
	if opts.Trace != "" {
		if err := s.launch(opts.Trace, trace.Start, trace.Stop); err != nil {
			_ = s.Stop()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
	}
	if opts.Mem != "" {
		s.stops = append([]func() error{func() error { return writeHeap(opts.Mem) }}, s.stops...)
	}
	return s, nil
}

func (s *Session) launch(path string, start func(io.Writer) error, stop func()) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := start(f); err != nil {
		_ = f.Close()
		return err
	}
	s.stops = append(s.stops, func() error {
		stop()
		return f.Close()
	})
	return nil
}

// Stop ends every profiler and writes the heap profile. Later calls, and
// calls on a nil session, do nothing.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	var errs []error
	for i := len(s.stops) - 1; i >= 0; i-- {
		errs = append(errs, s.stops[i]())
	}
	s.stops = nil
	return errors.Join(errs...)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("heap profile: %w", err)
	}
	return f.Close()
}
