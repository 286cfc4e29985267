// Package gcppubsub binds the orpheus carrier codecs to Google Pub/Sub
// message attributes.
package gcppubsub

import (
	"cloud.google.com/go/pubsub"
	"github.com/pkg/errors"

	"github.com/orphlabs/orpheus"
)

// Inject writes the JSON-encoded context into a message attribute.
func Inject(msg *pubsub.Message, key string, c orpheus.TraceContext) {
	if msg.Attributes == nil {
		msg.Attributes = map[string]string{}
	}
	msg.Attributes[key] = string(orpheus.EncodeTraceContext(c))
}

// Extract reads the context from a message attribute.
func Extract(msg *pubsub.Message, key string) (orpheus.TraceContext, error) {
	raw, ok := msg.Attributes[key]
	if !ok || raw == "" {
		return orpheus.TraceContext{}, errors.Errorf("attribute %q not found", key)
	}
	return orpheus.DecodeTraceContext([]byte(raw))
}

// Embedded builds a codec over whole Pub/Sub messages, carrying the context
// in an attribute.
func Embedded[A any](key string, body orpheus.Codec[[]byte, []byte, A]) orpheus.Codec[*pubsub.Message, *pubsub.Message, orpheus.Traced[A]] {
	return orpheus.Codec[*pubsub.Message, *pubsub.Message, orpheus.Traced[A]]{
		Decode: func(msg *pubsub.Message) (orpheus.Traced[A], error) {
			value, err := body.Decode(msg.Data)
			if err != nil {
				return orpheus.Traced[A]{}, err
			}
			tc, err := Extract(msg, key)
			if err != nil {
				return orpheus.Traced[A]{}, err
			}
			return orpheus.Traced[A]{Value: value, Context: tc}, nil
		},
		Encode: func(t orpheus.Traced[A]) *pubsub.Message {
			msg := &pubsub.Message{Data: body.Encode(t.Value)}
			Inject(msg, key, t.Context)
			return msg
		},
	}
}
