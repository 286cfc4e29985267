package orpheus

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// EventType classifies a telemetry event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventInfo      EventType = "info"
)

func (t EventType) known() bool {
	switch t {
	case EventStarted, EventCompleted, EventError, EventInfo:
		return true
	}
	return false
}

// TelemetryEvent is the atomic unit handed to the publisher. Immutable.
type TelemetryEvent struct {
	TraceID   string
	EventType EventType
	Timestamp time.Time
	Tags      TraceTags
}

// tsLayout renders millisecond precision with an explicit UTC offset.
const tsLayout = "2006-01-02T15:04:05.000-07:00"

func appendJSONString(buf *bytes.Buffer, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		// Strings always marshal; keep the encoder total regardless.
		buf.WriteString(`""`)
		return
	}
	buf.Write(b)
}

// EncodeEvent writes the wire encoding of e into buf:
//
//	{"ts":"...","et":"...","tid":"...","tags":{...}}
//
// Tags are serialized in sorted key order so output is deterministic.
func EncodeEvent(e TelemetryEvent, buf *bytes.Buffer) {
	buf.WriteString(`{"ts":`)
	appendJSONString(buf, e.Timestamp.Format(tsLayout))
	buf.WriteString(`,"et":`)
	appendJSONString(buf, string(e.EventType))
	buf.WriteString(`,"tid":`)
	appendJSONString(buf, e.TraceID)
	buf.WriteString(`,"tags":{`)

	keys := make([]string, 0, len(e.Tags))
	for k := range e.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		appendJSONString(buf, k)
		buf.WriteByte(':')
		appendJSONString(buf, e.Tags[k])
	}
	buf.WriteString("}}")
}

// EventJSON returns the wire encoding of e as a string.
func EventJSON(e TelemetryEvent) string {
	var buf bytes.Buffer
	EncodeEvent(e, &buf)
	return buf.String()
}

// contextWire is the embedded trace-context JSON shape. The "ts" field here
// carries tags, not a timestamp.
type contextWire struct {
	Tid string            `json:"tid"`
	Ts  map[string]string `json:"ts"`
}

// EncodeTraceContext renders c as {"tid":"...","ts":{...}}.
func EncodeTraceContext(c TraceContext) []byte {
	w := contextWire{Tid: c.TraceID, Ts: c.Tags}
	if w.Ts == nil {
		w.Ts = map[string]string{}
	}
	b, err := json.Marshal(w)
	if err != nil {
		return []byte(`{"tid":"","ts":{}}`)
	}
	return b
}

// DecodeTraceContext parses the embedded trace-context JSON shape.
func DecodeTraceContext(data []byte) (TraceContext, error) {
	var w contextWire
	if err := json.Unmarshal(data, &w); err != nil {
		return TraceContext{}, errors.Wrap(err, "malformed trace context")
	}
	return NewTraceContext(w.Tid, OfMap(w.Ts))
}
