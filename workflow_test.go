package orpheus

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/zoobzio/clockz"
)

// eventCapture records everything a publisher's worker hands to the sink.
type eventCapture struct {
	mu     sync.Mutex
	events []TelemetryEvent
}

func capturePublisher(capacity int) (*Publisher, *eventCapture) {
	c := &eventCapture{}
	p := NewPublisher(PublisherConfig{
		Capacity: capacity,
		Sink: func(e TelemetryEvent, _ *bytes.Buffer) {
			c.mu.Lock()
			c.events = append(c.events, e)
			c.mu.Unlock()
		},
	})
	return p, c
}

func (c *eventCapture) all() []TelemetryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TelemetryEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *eventCapture) byType(et EventType) []TelemetryEvent {
	var out []TelemetryEvent
	for _, e := range c.all() {
		if e.EventType == et {
			out = append(out, e)
		}
	}
	return out
}

func TestServeEcho(t *testing.T) {
	pub, capture := capturePublisher(64)
	pub.Start()

	clock := clockz.NewFakeClock()
	tracer := New("test-service", pub).WithClock(clock)
	defer tracer.Close()

	codec := JSONEmbedded[order](DefaultTraceField)
	inboundCtx, _ := NewTraceContext("trace-w", EmptyTags().AddString(TagSpanID, "parent-w"))
	inbound := codec.Encode(Traced[order]{Value: order{ID: "o1", Amount: 5}, Context: inboundCtx})

	var serverSpan Span
	handler := func(span Span, in order) (order, error) {
		serverSpan = span
		clock.Advance(10 * time.Millisecond)
		return order{ID: in.ID, Amount: in.Amount + 1}, nil
	}

	out, err := Serve(tracer, "handle-order", codec.Decode, codec.Encode, nil, handler, inbound)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if serverSpan.TraceID != "trace-w" || serverSpan.ParentID != "parent-w" {
		t.Errorf("Expected resumed trace, got %+v", serverSpan)
	}

	reply, err := codec.Decode(out)
	if err != nil {
		t.Fatalf("Unexpected error decoding echo: %v", err)
	}
	if reply.Value.Amount != 6 {
		t.Errorf("Expected handler result echoed, got %+v", reply.Value)
	}
	if reply.Context.TraceID != "trace-w" {
		t.Errorf("Expected reply to propagate the trace id, got %s", reply.Context.TraceID)
	}
	if reply.Context.Tags[TagSpanID] != serverSpan.SpanID {
		t.Errorf("Expected reply context to carry the server span id, got %v", reply.Context.Tags)
	}

	pub.Stop()
	if n := len(capture.byType(EventStarted)); n != 1 {
		t.Errorf("Expected 1 started event, got %d", n)
	}
	completed := capture.byType(EventCompleted)
	if len(completed) != 1 {
		t.Fatalf("Expected 1 completed event, got %d", len(completed))
	}
	if completed[0].Tags[TagDuration] != "10" {
		t.Errorf("Expected duration tag 10, got %v", completed[0].Tags)
	}
}

func TestServeDecodeFailure(t *testing.T) {
	tracer, _ := newTestTracer()
	defer tracer.Close()

	codec := JSONEmbedded[order](DefaultTraceField)
	handler := func(_ Span, in order) (order, error) { return in, nil }

	_, err := Serve(tracer, "handle-order", codec.Decode, codec.Encode, nil, handler, []byte(`{"id":"o1"}`))
	if err == nil {
		t.Fatal("Expected decode error to escalate")
	}
	if !strings.Contains(err.Error(), "handle-order") {
		t.Errorf("Expected error wrapped with span name, got %v", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected underlying decode diagnostic, got %v", err)
	}
}

func TestServeHandlerErrorIdentity(t *testing.T) {
	pub, capture := capturePublisher(64)
	pub.Start()

	clock := clockz.NewFakeClock()
	tracer := New("test-service", pub).WithClock(clock)
	defer tracer.Close()

	codec := JSONEmbedded[order](DefaultTraceField)
	inbound := codec.Encode(Traced[order]{Value: order{ID: "o1"}, Context: OriginateNew(nil)})

	sentinel := errors.New("kaboom")
	handler := func(_ Span, _ order) (order, error) { return order{}, sentinel }

	_, err := Serve(tracer, "handle-order", codec.Decode, codec.Encode, nil, handler, inbound)
	if err != sentinel {
		t.Fatalf("Expected the handler error returned unchanged, got %v", err)
	}

	pub.Stop()
	errored := capture.byType(EventError)
	if len(errored) != 1 {
		t.Fatalf("Expected 1 error event, got %d", len(errored))
	}
	if errored[0].Tags[TagMessage] != "kaboom" {
		t.Errorf("Expected message tag kaboom, got %v", errored[0].Tags)
	}
	if _, ok := errored[0].Tags[TagDuration]; !ok {
		t.Error("Expected error event to carry a duration")
	}
}

func TestCallRoundTrip(t *testing.T) {
	clock := clockz.NewFakeClock()
	serverTracer := New("server-service", nil).WithClock(clock)
	defer serverTracer.Close()
	clientTracer := New("client-service", nil).WithClock(clock)
	defer clientTracer.Close()

	codec := JSONEmbedded[order](DefaultTraceField)

	var serverSpan Span
	transport := func(out []byte) ([]byte, error) {
		return Serve(serverTracer, "handle-order", codec.Decode, codec.Encode, nil,
			func(span Span, in order) (order, error) {
				serverSpan = span
				return order{ID: in.ID, Amount: in.Amount * 2}, nil
			}, out)
	}

	parent := clientTracer.Create("inbound", OriginateNew(nil), nil)

	result, err := Call(clientTracer, parent, "order-service", codec.Encode, codec.Decode, nil, transport, order{ID: "o9", Amount: 4})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Amount != 8 {
		t.Errorf("Expected doubled amount, got %+v", result)
	}

	// Causality: the server span joins the client's trace, one hop below
	// the client span, which itself sits below the inbound parent.
	if serverSpan.TraceID != parent.TraceID {
		t.Errorf("Expected trace id %s, got %s", parent.TraceID, serverSpan.TraceID)
	}
	if serverSpan.ParentID == "" || serverSpan.ParentID == parent.SpanID {
		t.Errorf("Expected server parent to be the client span, got %q", serverSpan.ParentID)
	}
}

func TestCallTransportErrorIdentity(t *testing.T) {
	tracer, _ := newTestTracer()
	defer tracer.Close()

	codec := JSONEmbedded[order](DefaultTraceField)
	sentinel := errors.New("connection refused")
	transport := func(_ []byte) ([]byte, error) { return nil, sentinel }

	parent := tracer.Create("inbound", OriginateNew(nil), nil)
	_, err := Call(tracer, parent, "order-service", codec.Encode, codec.Decode, nil, transport, order{ID: "o1"})
	if err != sentinel {
		t.Fatalf("Expected the transport error returned unchanged, got %v", err)
	}
}

func TestCompleteAckDecodeFailure(t *testing.T) {
	tracer, _ := newTestTracer()
	defer tracer.Close()

	codec := JSONEmbedded[order](DefaultTraceField)
	parent := tracer.Create("inbound", OriginateNew(nil), nil)
	client := tracer.CreateClient("order-service", parent, nil)

	_, _, _, err := CompleteAck(tracer, client, codec.Decode, []byte(`junk`))
	if err == nil {
		t.Fatal("Expected decode error")
	}
	if !strings.Contains(err.Error(), "order-service") || !strings.Contains(err.Error(), client.TraceID) {
		t.Errorf("Expected error naming span and trace, got %v", err)
	}

	// The span was never marked complete.
	if client.Finished() {
		t.Error("Client span must not be completed on decode failure")
	}
	if _, err := tracer.Complete(client); err != nil {
		t.Errorf("Span must still be completable: %v", err)
	}
}
