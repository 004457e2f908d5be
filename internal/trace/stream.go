package trace

import (
	"io"
	"os"
	"sync"
)

const (
	chromeHeader  = "{\"traceEvents\":[\n"
	chromeSep     = ",\n"
	chromeTrailer = "\n]}\n"
)

// StreamTracer writes every event to w as it arrives. Chrome output is
// wrapped in a traceEvents array that Close terminates.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	n      int
}

// NewStreamTracer writes events at level or coarser to w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	t := &StreamTracer{w: w, level: level, format: format}
	if format == FormatChrome {
		t.write([]byte(chromeHeader))
	}
	return t
}

// write drops errors; tracing never fails the traced run.
func (t *StreamTracer) write(p []byte) {
	_, _ = t.w.Write(p) //nolint:errcheck // see above
}

// Emit writes ev. Heartbeats bypass the level filter.
func (t *StreamTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.format == FormatChrome && t.n > 0 {
		t.write([]byte(chromeSep))
	}
	t.n++
	t.write(data)
}

// Flush forwards to writers that buffer.
func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close terminates chrome output and closes w unless it is a standard stream.
func (t *StreamTracer) Close() error {
	if t.format == FormatChrome {
		t.mu.Lock()
		t.write([]byte(chromeTrailer))
		t.mu.Unlock()
	}
	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok && t.w != os.Stderr && t.w != os.Stdout {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
