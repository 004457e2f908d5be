package trace

import "time"

// Kind tells span boundaries, instants and heartbeats apart.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string { return lookupName(kindNames[:], int(k)) }

// Scope is the granularity of an event; smaller is coarser.
type Scope uint8

const (
	ScopeDriver    Scope = iota + 1 // commands, whole stress runs
	ScopePass                       // pipelines, passes, cleanup
	ScopeIteration                  // one fixpoint round over a scope
	ScopeNode                       // single rewrites
)

var scopeNames = [...]string{
	ScopeDriver:    "driver",
	ScopePass:      "pass",
	ScopeIteration: "iteration",
	ScopeNode:      "node",
}

func (s Scope) String() string { return lookupName(scopeNames[:], int(s)) }

func lookupName(names []string, i int) string {
	if i < 0 || i >= len(names) || names[i] == "" {
		return "unknown"
	}
	return names[i]
}

// Event is one trace record. Begin and end events of a span share SpanID.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	GID      uint64 // emitting goroutine
	Name     string // "stress", "pass:peephole", "cleanup", ...
	Detail   string
	Extra    map[string]string
}
