package trace

import (
	"fmt"
	"strings"
)

// Level is the tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // driver spans only; a failed run ends its span with the error
	LevelPhase        // commands and passes
	LevelDetail       // fixpoint iterations
	LevelDebug        // single rewrites
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

// deepest holds the finest scope each level lets through.
var deepest = [...]Scope{
	LevelError:  ScopeDriver,
	LevelPhase:  ScopePass,
	LevelDetail: ScopeIteration,
	LevelDebug:  ScopeNode,
}

func (l Level) String() string { return lookupName(levelNames[:], int(l)) }

// ParseLevel parses a level name case-insensitively; "" means off.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelOff, nil
	}
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope pass at level l.
func (l Level) ShouldEmit(scope Scope) bool {
	return int(l) < len(deepest) && scope > 0 && scope <= deepest[l]
}
