package trace

import (
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Format is the on-disk shape of trace events.
type Format uint8

const (
	FormatAuto   Format = iota // pick from the output path
	FormatText                 // one indented line per event
	FormatNDJSON               // one JSON object per line
	FormatChrome               // chrome://tracing and Perfetto
)

var formatNames = [...]string{"auto", "text", "ndjson", "chrome"}

func (f Format) String() string { return lookupName(formatNames[:], int(f)) }

// ParseFormat parses a format name; "" is auto and "json" is ndjson.
func ParseFormat(s string) (Format, error) {
	switch s = strings.ToLower(s); s {
	case "":
		return FormatAuto, nil
	case "json":
		return FormatNDJSON, nil
	}
	if i := slices.Index(formatNames[:], s); i >= 0 {
		return Format(i), nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: %s)", s, strings.Join(formatNames[:], "|"))
}

// formatForPath maps .json to Chrome and .ndjson to NDJSON; everything else
// is text.
func formatForPath(path string) Format {
	switch filepath.Ext(path) {
	case ".ndjson":
		return FormatNDJSON
	case ".json":
		return FormatChrome
	default:
		return FormatText
	}
}

// Timestamps in text and Chrome output are relative to process start.
var processStart = time.Now()

func sinceStart(t time.Time) time.Duration { return t.Sub(processStart) }

// FormatEvent renders ev in format; FormatAuto renders text.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	default:
		return formatText(ev)
	}
}

type ndjsonEvent struct {
	Time     time.Time         `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Scope    string            `json:"scope"`
	SpanID   uint64            `json:"span_id,omitempty"`
	ParentID uint64            `json:"parent_id,omitempty"`
	GID      uint64            `json:"gid,omitempty"`
	Name     string            `json:"name"`
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	data, _ := json.Marshal(ndjsonEvent{ //nolint:errchkjson // strings, integers and a time
		Time:     ev.Time,
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		GID:      ev.GID,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	})
	return append(data, '\n')
}

type chromeEvent struct {
	Name  string            `json:"name"`
	Cat   string            `json:"cat"`
	Phase string            `json:"ph"`
	TS    int64             `json:"ts"`
	PID   int               `json:"pid"`
	TID   uint64            `json:"tid"`
	Scope string            `json:"s,omitempty"`
	Args  map[string]string `json:"args,omitempty"`
}

func formatChrome(ev *Event) []byte {
	ce := chromeEvent{
		Name:  ev.Name,
		Cat:   ev.Scope.String(),
		Phase: "i",
		Scope: "t",
		TS:    sinceStart(ev.Time).Microseconds(),
		PID:   1,
		TID:   ev.GID,
		Args:  ev.Extra,
	}
	switch ev.Kind {
	case KindSpanBegin:
		ce.Phase, ce.Scope = "B", ""
	case KindSpanEnd:
		ce.Phase, ce.Scope = "E", ""
	}
	if ev.Detail != "" {
		ce.Args = maps.Clone(ev.Extra)
		if ce.Args == nil {
			ce.Args = make(map[string]string, 1)
		}
		ce.Args["detail"] = ev.Detail
	}
	data, _ := json.Marshal(ce) //nolint:errchkjson // strings and integers
	return data
}

var textMarkers = [...]string{
	KindSpanBegin: "→ ",
	KindSpanEnd:   "← ",
	KindPoint:     "• ",
	KindHeartbeat: "♡ ",
}

// formatText renders "[elapsed] marker name (detail) {k=v, ...}", indented by
// scope.
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%9.3fms] ", float64(sinceStart(ev.Time).Microseconds())/1000)
	if ev.Scope > ScopeDriver {
		sb.WriteString(strings.Repeat("  ", int(ev.Scope-ScopeDriver)))
	}
	if int(ev.Kind) < len(textMarkers) {
		sb.WriteString(textMarkers[ev.Kind])
	}
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		sb.WriteString(" (" + ev.Detail + ")")
	}
	if len(ev.Extra) > 0 {
		pairs := make([]string, 0, len(ev.Extra))
		for _, k := range slices.Sorted(maps.Keys(ev.Extra)) {
			pairs = append(pairs, k+"="+ev.Extra[k])
		}
		sb.WriteString(" {" + strings.Join(pairs, ", ") + "}")
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
