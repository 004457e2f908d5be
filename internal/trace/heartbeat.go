package trace

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

// Heartbeat emits a driver-scope event every interval until stopped. Each
// beat carries its number and, once a reporter is installed, its
// progress report; beats whose report stops moving point at a pipeline that
// does not converge.
type Heartbeat struct {
	tracer Tracer
	cancel context.CancelFunc
	done   chan struct{}
	report atomic.Pointer[func() string]
}

// StartHeartbeat starts beating on t. It returns nil when t is disabled or
// interval is not positive; a nil Heartbeat accepts every method.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{tracer: t, cancel: cancel, done: make(chan struct{})}
	go h.beat(ctx, interval)
	return h
}

// SetReporter installs fn as the progress reporter. fn runs on the heartbeat
// goroutine and must be safe for concurrent use.
func (h *Heartbeat) SetReporter(fn func() string) {
	if h == nil {
		return
	}
	h.report.Store(&fn)
}

func (h *Heartbeat) beat(ctx context.Context, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := uint64(1); ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		detail := "#" + strconv.FormatUint(n, 10)
		if p := h.report.Load(); p != nil {
			detail += " " + (*p)()
		}
		h.tracer.Emit(&Event{
			Time:   time.Now(),
			Seq:    NextSeq(),
			Kind:   KindHeartbeat,
			Scope:  ScopeDriver,
			GID:    goroutineID(),
			Name:   "heartbeat",
			Detail: detail,
		})
	}
}

// Stop ends the heartbeat and waits for its goroutine. Calling Stop twice is
// fine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}
