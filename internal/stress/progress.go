package stress

import "time"

// Stage is the step a universe is in.
type Stage uint8

const (
	StageQueued Stage = iota
	StageGenerate
	StageOptimize
	StageVerify
	StageDone
	StageFailed
)

var stageNames = [...]string{"queued", "generating", "optimizing", "verifying", "done", "failed"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Finished reports whether s is terminal.
func (s Stage) Finished() bool { return s == StageDone || s == StageFailed }

// Event reports a universe entering a stage.
type Event struct {
	Universe int
	Seed     uint64
	Stage    Stage
	Err      error         // set for StageFailed
	Elapsed  time.Duration // set for finished stages
}

// ProgressSink consumes events. Run calls it from its workers concurrently.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- ev
}

func (o Options) emit(ev Event) {
	if o.Progress != nil {
		o.Progress.OnEvent(ev)
	}
}
