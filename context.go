package orpheus

import (
	"github.com/pkg/errors"
)

// TraceContext is the unit propagated across a service boundary: a trace id
// plus tags, notably the parent span id. Immutable.
type TraceContext struct {
	TraceID string
	Tags    TraceTags
}

// NewTraceContext builds a context from an existing trace id.
func NewTraceContext(traceID string, tags TraceTags) (TraceContext, error) {
	if traceID == "" {
		return TraceContext{}, errors.New("trace id must not be empty")
	}
	if tags == nil {
		tags = EmptyTags()
	}
	return TraceContext{TraceID: traceID, Tags: tags}, nil
}

// Originate builds a context with no tags from an existing trace id.
func Originate(traceID string) (TraceContext, error) {
	return NewTraceContext(traceID, nil)
}

// OriginateNew starts a brand new trace with a fresh random id.
func OriginateNew(tags TraceTags) TraceContext {
	if tags == nil {
		tags = EmptyTags()
	}
	return TraceContext{TraceID: newID(), Tags: tags}
}

// WithTags returns a copy of c with tags merged in; new values win.
func (c TraceContext) WithTags(tags TraceTags) TraceContext {
	return TraceContext{TraceID: c.TraceID, Tags: Merge(c.Tags, tags)}
}
