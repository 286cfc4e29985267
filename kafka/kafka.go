// Package kafka binds the orpheus carrier codecs to Kafka record headers.
package kafka

import (
	"github.com/IBM/sarama"
	"github.com/pkg/errors"

	"github.com/orphlabs/orpheus"
)

// Inject writes the JSON-encoded context into a record header on an
// outbound producer message, replacing any previous value.
func Inject(msg *sarama.ProducerMessage, header string, c orpheus.TraceContext) {
	value := orpheus.EncodeTraceContext(c)
	for i := range msg.Headers {
		if string(msg.Headers[i].Key) == header {
			msg.Headers[i].Value = value
			return
		}
	}
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte(header),
		Value: value,
	})
}

// Extract reads the context from a record header on an inbound consumer
// message.
func Extract(msg *sarama.ConsumerMessage, header string) (orpheus.TraceContext, error) {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == header {
			return orpheus.DecodeTraceContext(h.Value)
		}
	}
	return orpheus.TraceContext{}, errors.Errorf("record header %q not found", header)
}

// Embedded builds a codec that decodes consumer messages and encodes
// producer messages for topic, carrying the context in a record header.
func Embedded[A any](topic, header string, body orpheus.Codec[[]byte, []byte, A]) orpheus.Codec[*sarama.ConsumerMessage, *sarama.ProducerMessage, orpheus.Traced[A]] {
	return orpheus.Codec[*sarama.ConsumerMessage, *sarama.ProducerMessage, orpheus.Traced[A]]{
		Decode: func(msg *sarama.ConsumerMessage) (orpheus.Traced[A], error) {
			value, err := body.Decode(msg.Value)
			if err != nil {
				return orpheus.Traced[A]{}, err
			}
			tc, err := Extract(msg, header)
			if err != nil {
				return orpheus.Traced[A]{}, err
			}
			return orpheus.Traced[A]{Value: value, Context: tc}, nil
		},
		Encode: func(t orpheus.Traced[A]) *sarama.ProducerMessage {
			msg := &sarama.ProducerMessage{
				Topic: topic,
				Value: sarama.ByteEncoder(body.Encode(t.Value)),
			}
			Inject(msg, header, t.Context)
			return msg
		},
	}
}
