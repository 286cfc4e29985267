package orpheus

import (
	"github.com/pkg/errors"
)

// Handler is the server-side business logic invoked between decode and
// completion.
type Handler[A, B any] func(span Span, value A) (B, error)

// Transport performs the client-side call: it ships the encoded request and
// returns the raw reply.
type Transport[O, I any] func(out O) (I, error)

// DecodeStart decodes an inbound message into (payload, context) and starts
// a server span from the context. Decode failures are wrapped with the span
// name and escalated.
func DecodeStart[I, A any](t *Tracer, name string, dec Dec[I, Traced[A]], tags TraceTags, input I) (Span, A, error) {
	tr, err := dec(input)
	if err != nil {
		var zero A
		return Span{}, zero, errors.Wrapf(err, "span %q: decode failed", name)
	}
	span := t.Create(name, tr.Context, tags)
	return span, tr.Value, nil
}

// CompleteEcho completes the span, derives its propagation context and
// encodes (value, context) as the outbound reply.
func CompleteEcho[O, B any](t *Tracer, enc Enc[O, Traced[B]], span Span, value B) (Span, O, error) {
	done, err := t.Complete(span)
	if err != nil {
		var zero O
		return span, zero, err
	}
	return done, enc(Traced[B]{Value: value, Context: ToTraceContext(done)}), nil
}

// Serve runs the full server workflow: decode and start a span, invoke the
// handler, then complete and echo. A handler error marks the span errored
// and is returned unchanged, never swallowed or replaced.
func Serve[I, O, A, B any](t *Tracer, name string, dec Dec[I, Traced[A]], enc Enc[O, Traced[B]], tags TraceTags, handler Handler[A, B], input I) (O, error) {
	var zero O

	span, value, err := DecodeStart(t, name, dec, tags, input)
	if err != nil {
		return zero, err
	}

	result, err := handler(span, value)
	if err != nil {
		t.Errored(err.Error(), span) //nolint:errcheck // original handler error takes precedence
		return zero, err
	}

	_, out, err := CompleteEcho(t, enc, span, result)
	return out, err
}

// StartPropagate creates a client span under parent and encodes
// (value, childContext) for transmission.
func StartPropagate[O, B any](t *Tracer, parent Span, clientName string, enc Enc[O, Traced[B]], tags TraceTags, value B) (Span, O) {
	client := t.CreateClient(clientName, parent, tags)
	return client, enc(Traced[B]{Value: value, Context: ToTraceContext(client)})
}

// CompleteAck decodes the reply and, on success, completes the client span.
// A span whose reply could not be decoded is never silently marked complete:
// the decode error is wrapped with the span name and trace id and returned.
func CompleteAck[I, A any](t *Tracer, client Span, dec Dec[I, Traced[A]], output I) (Span, A, TraceContext, error) {
	var zero A

	tr, err := dec(output)
	if err != nil {
		return client, zero, TraceContext{}, errors.Wrapf(err, "span %q (trace %s): reply decode failed", client.Name, client.TraceID)
	}

	done, err := t.Complete(client)
	if err != nil {
		return client, zero, TraceContext{}, err
	}
	return done, tr.Value, tr.Context, nil
}

// Call runs the full client workflow: propagate a child context with the
// request, invoke the transport, then acknowledge the reply. Transport and
// reply-decode failures mark the client span errored; the original transport
// error is returned unchanged.
func Call[O, I, B, A any](t *Tracer, parent Span, clientName string, enc Enc[O, Traced[B]], dec Dec[I, Traced[A]], tags TraceTags, transport Transport[O, I], value B) (A, error) {
	var zero A

	client, out := StartPropagate(t, parent, clientName, enc, tags, value)

	reply, err := transport(out)
	if err != nil {
		t.Errored(err.Error(), client) //nolint:errcheck // original transport error takes precedence
		return zero, err
	}

	_, result, _, err := CompleteAck(t, client, dec, reply)
	if err != nil {
		t.Errored(err.Error(), client) //nolint:errcheck // decode error takes precedence
		return zero, err
	}
	return result, nil
}
