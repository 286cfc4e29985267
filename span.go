package orpheus

import (
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zoobzio/clockz"
)

// Span represents a single unit of work in a distributed trace. Spans are
// immutable values: completion returns a new Span rather than mutating in
// place. Complete the same span value from one goroutine only.
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string // empty when the span is a trace root
	Name     string
	Started  time.Time
	Duration *time.Duration // nil until completed or errored
	Tags     TraceTags
}

// Finished reports whether the span has been completed or errored.
func (s Span) Finished() bool {
	return s.Duration != nil
}

// Tracer manages span lifecycle: creation, completion and telemetry event
// materialization. Safe for concurrent use by multiple goroutines.
type Tracer struct {
	service   string
	publisher *Publisher
	clock     clockz.Clock
	spanIDs   *idPool
	poolOnce  sync.Once
}

// New creates a tracer stamping the given service name on every span.
// The publisher receives completed/errored/started events; it may be nil
// when the caller only wants span values.
func New(service string, publisher *Publisher) *Tracer {
	return &Tracer{
		service:   service,
		publisher: publisher,
		clock:     clockz.RealClock,
	}
}

// WithClock returns a tracer using the specified clock.
// Enables clock injection for deterministic testing.
func (t *Tracer) WithClock(clock clockz.Clock) *Tracer {
	return &Tracer{
		service:   t.service,
		publisher: t.publisher,
		clock:     clock,
	}
}

func (t *Tracer) ensurePool() {
	t.poolOnce.Do(func() {
		t.spanIDs = newIDPool(runtime.NumCPU() * 100)
	})
}

// Close releases the tracer's id pool.
func (t *Tracer) Close() {
	if t.spanIDs != nil {
		t.spanIDs.close()
	}
}

func (t *Tracer) newSpanID() string {
	t.ensurePool()
	return t.spanIDs.get()
}

func (t *Tracer) emit(e TelemetryEvent) {
	if t.publisher != nil {
		t.publisher.Publish(e)
	}
}

// Create starts a server-side span from an inbound trace context. The parent
// span id is taken from the context's span_id tag when present; otherwise
// the span is a trace root. Context tags (minus span_id) are inherited as
// baggage. A started event is emitted when a publisher is attached.
func (t *Tracer) Create(name string, ctx TraceContext, tags TraceTags) Span {
	parent, _ := ctx.Tags.Get(TagSpanID)

	spanTags := Merge(ctx.Tags.ExceptTags(TagSpanID), tags)
	spanTags = spanTags.AddString(TagService, t.service)

	span := Span{
		TraceID:  ctx.TraceID,
		SpanID:   t.newSpanID(),
		ParentID: parent,
		Name:     name,
		Started:  t.clock.Now(),
		Tags:     spanTags,
	}

	if e, err := t.ToTelemetryEvent(EventStarted, span); err == nil {
		t.emit(e)
	}
	return span
}

// CreateClient starts a client span nested under parent. Client spans never
// originate a trace: the trace id is inherited and the parent id is always
// set.
func (t *Tracer) CreateClient(name string, parent Span, tags TraceTags) Span {
	spanTags := Merge(tags, nil)
	spanTags = spanTags.AddString(TagClientOp, name)
	spanTags = spanTags.AddString(TagService, t.service)

	span := Span{
		TraceID:  parent.TraceID,
		SpanID:   t.newSpanID(),
		ParentID: parent.SpanID,
		Name:     name,
		Started:  t.clock.Now(),
		Tags:     spanTags,
	}

	if e, err := t.ToTelemetryEvent(EventStarted, span); err == nil {
		t.emit(e)
	}
	return span
}

func (t *Tracer) finish(span Span, eventType EventType, extra TraceTags) (Span, error) {
	if span.Finished() {
		return span, errors.Errorf("span %q (trace %s): already completed", span.Name, span.TraceID)
	}

	elapsed := t.clock.Now().Sub(span.Started).Truncate(time.Millisecond)
	done := span
	done.Duration = &elapsed
	done.Tags = Merge(span.Tags, extra)

	e, err := t.ToTelemetryEvent(eventType, done)
	if err != nil {
		return span, err
	}
	t.emit(e)
	return done, nil
}

// Complete finishes the span, setting its duration to the elapsed wall time
// rounded down to milliseconds, and emits a completed event. Completing an
// already-finished span is an error.
func (t *Tracer) Complete(span Span) (Span, error) {
	return t.finish(span, EventCompleted, nil)
}

// Errored finishes the span the same way Complete does, records message
// under the message tag and emits an error event.
func (t *Tracer) Errored(message string, span Span) (Span, error) {
	return t.finish(span, EventError, EmptyTags().AddString(TagMessage, message))
}

// ToTelemetryEvent materializes a telemetry event from a span. Completed and
// error events require the span's duration to be set. The event carries the
// span's tags plus span_name, span_id, parent_span_id (if present) and
// duration (if present).
func (t *Tracer) ToTelemetryEvent(eventType EventType, span Span) (TelemetryEvent, error) {
	if !eventType.known() {
		return TelemetryEvent{}, errors.Errorf("span %q (trace %s): invalid event type %q", span.Name, span.TraceID, eventType)
	}
	if (eventType == EventCompleted || eventType == EventError) && !span.Finished() {
		return TelemetryEvent{}, errors.Errorf("span %q (trace %s): duration not set for %s event", span.Name, span.TraceID, eventType)
	}

	ts := t.clock.Now()
	if eventType == EventStarted {
		ts = span.Started
	}

	tags := span.Tags.
		AddString(TagSpanName, span.Name).
		AddString(TagSpanID, span.SpanID)
	if span.ParentID != "" {
		tags = tags.AddString(TagParentSpanID, span.ParentID)
	}
	if span.Duration != nil {
		tags = tags.AddTimeSpan(TagDuration, *span.Duration)
	}

	return TelemetryEvent{
		TraceID:   span.TraceID,
		EventType: eventType,
		Timestamp: ts,
		Tags:      tags,
	}, nil
}

// OfTelemetryEvent is the inverse of ToTelemetryEvent: it reconstructs the
// span a telemetry event was materialized from. The span_name and span_id
// tags are required. The reserved span tags are stripped from the returned
// span's Tags.
func OfTelemetryEvent(e TelemetryEvent) (Span, error) {
	name, okName := e.Tags.Get(TagSpanName)
	id, okID := e.Tags.Get(TagSpanID)
	if !okName || !okID {
		return Span{}, errors.Errorf("trace %s: missing span_name or span_id", e.TraceID)
	}

	parent, _ := e.Tags.Get(TagParentSpanID)

	span := Span{
		TraceID:  e.TraceID,
		SpanID:   id,
		ParentID: parent,
		Name:     name,
		Started:  e.Timestamp,
		Tags:     e.Tags.ExceptTags(TagSpanName, TagSpanID, TagParentSpanID, TagDuration),
	}

	if raw, ok := e.Tags.Get(TagDuration); ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Span{}, errors.Wrapf(err, "trace %s: malformed duration tag", e.TraceID)
		}
		d := time.Duration(ms) * time.Millisecond
		span.Duration = &d
		span.Started = e.Timestamp.Add(-d)
	}

	return span, nil
}

// ToTraceContext derives the propagation context an outbound message
// carries: the span's trace id plus its span id, so the receiving side can
// link as a child.
func ToTraceContext(span Span) TraceContext {
	return TraceContext{
		TraceID: span.TraceID,
		Tags:    EmptyTags().AddString(TagSpanID, span.SpanID),
	}
}
