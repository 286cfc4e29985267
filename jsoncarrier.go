package orpheus

import (
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// jsonCarrier plugs raw JSON documents ([]byte) into the embedding algebra.
type jsonCarrier struct{}

// JSONCarrier is the Carrier binding for raw JSON documents.
var JSONCarrier Carrier[[]byte] = jsonCarrier{}

func (jsonCarrier) TryGet(doc []byte, name string) ([]byte, bool) {
	value, typ, _, err := jsonparser.Get(doc, name)
	if err != nil || typ == jsonparser.NotExist {
		return nil, false
	}
	return value, true
}

func (jsonCarrier) Set(doc []byte, name string, value []byte) []byte {
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	out, err := jsonparser.Set(doc, value, name)
	if err != nil {
		return doc
	}
	return out
}

func (jsonCarrier) Null() []byte {
	return []byte("null")
}

// JSONContextCodec moves a TraceContext in and out of its embedded JSON
// shape.
var JSONContextCodec = Codec[[]byte, []byte, TraceContext]{
	Decode: DecodeTraceContext,
	Encode: EncodeTraceContext,
}

// JSONBodyCodec builds a codec between a JSON document and a value of type A.
func JSONBodyCodec[A any]() Codec[[]byte, []byte, A] {
	return Codec[[]byte, []byte, A]{
		Decode: func(doc []byte) (A, error) {
			var a A
			if err := json.Unmarshal(doc, &a); err != nil {
				return a, errors.Wrap(err, "malformed body")
			}
			return a, nil
		},
		Encode: func(a A) []byte {
			b, err := json.Marshal(a)
			if err != nil {
				return []byte("{}")
			}
			return b
		},
	}
}

// JSONEmbedded embeds the context under field name in the message body,
// failing on decode when the field is absent.
func JSONEmbedded[A any](name string) Codec[[]byte, []byte, Traced[A]] {
	return StrongEmbeddedField(name, JSONCarrier, JSONContextCodec, JSONBodyCodec[A]())
}

// JSONEmbeddedWithFallback embeds the context under field name, originating
// a fresh trace when the field is absent or unreadable.
func JSONEmbeddedWithFallback[A any](name string) Codec[[]byte, []byte, Traced[A]] {
	dec := Total(JSONContextCodec.Decode, func() TraceContext { return OriginateNew(nil) })
	return EmbeddedFieldWithFallback(name, JSONCarrier, dec, JSONContextCodec.Encode, JSONBodyCodec[A]())
}
