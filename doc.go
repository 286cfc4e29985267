// Package orpheus provides a minimal distributed-tracing instrumentation
// library: correlation-id propagation, span lifecycle, and asynchronous
// telemetry publishing.
//
// orpheus focuses on producing telemetry events that an external indexing
// system can query later. It never stores or queries events itself.
//
// Core Components:
//   - TraceTags / TraceContext: immutable tag maps and the propagated unit.
//   - Codec: generic decode/encode pairs plus carrier-embedding combinators
//     that tuck a trace context into JSON bodies, HTTP headers, Kafka record
//     headers or Pub/Sub attributes.
//   - Tracer: the span state machine (create, complete, error) feeding a
//     Publisher.
//   - Publisher: a single background worker draining a bounded queue with
//     drop-on-full backpressure.
//   - Channel: binds a tracer, publisher and codec pair to a named transport
//     for request-reply and pub/sub usage.
//
// Basic Usage:
//
//	pub := orpheus.NewPublisher(orpheus.PublisherConfig{
//		Capacity: 1024,
//		Listener: func(line string) { fmt.Println(line) },
//	})
//	pub.Start()
//	defer pub.Stop()
//
//	tracer := orpheus.New("checkout", pub)
//
//	ctx, _ := orpheus.OriginateNew(nil)
//	span := tracer.Create("charge-card", ctx, nil)
//	// ... work ...
//	span, err := tracer.Complete(span)
//
// Thread Safety:
//
// Tracer and Publisher are safe for concurrent use by multiple goroutines.
// Span, TraceContext and TelemetryEvent are immutable values; "mutation"
// always returns a new value. Completing the same span value from two
// goroutines without synchronization is a programmer error - sequential use
// per span is required.
//
// Context Propagation:
//
// A span derives a TraceContext carrying its span id; the receiving side
// decodes that context and creates a child span with the same trace id.
package orpheus
