package orpheus

import (
	"net/http"

	"github.com/pkg/errors"
)

// DefaultTraceHeader is the HTTP header the trace context travels in.
const DefaultTraceHeader = "Jet-Dr-Orpheus"

// HTTPMessage is the minimal HTTP-message shape the carrier codecs need:
// headers plus a raw body. Adapting an *http.Request or *http.Response is
// the caller's one-liner.
type HTTPMessage struct {
	Header http.Header
	Body   []byte
}

// InjectHeader writes the JSON-encoded context into header on h.
func InjectHeader(h http.Header, header string, c TraceContext) {
	h.Set(header, string(EncodeTraceContext(c)))
}

// ExtractHeader reads the first value of header and decodes it.
func ExtractHeader(h http.Header, header string) (TraceContext, error) {
	values := h.Values(header)
	if len(values) == 0 || values[0] == "" {
		return TraceContext{}, errors.New("Header not found")
	}
	return DecodeTraceContext([]byte(values[0]))
}

// HTTPHeaderCodec moves a TraceContext in and out of a single named header.
func HTTPHeaderCodec(header string) Codec[http.Header, http.Header, TraceContext] {
	return Codec[http.Header, http.Header, TraceContext]{
		Decode: func(h http.Header) (TraceContext, error) {
			return ExtractHeader(h, header)
		},
		Encode: func(c TraceContext) http.Header {
			h := http.Header{}
			InjectHeader(h, header, c)
			return h
		},
	}
}

// HTTPEmbedded pairs a body codec with header-carried context, producing a
// codec over whole HTTP messages.
func HTTPEmbedded[A any](header string, body Codec[[]byte, []byte, A]) Codec[HTTPMessage, HTTPMessage, Traced[A]] {
	return Codec[HTTPMessage, HTTPMessage, Traced[A]]{
		Decode: func(m HTTPMessage) (Traced[A], error) {
			a, err := body.Decode(m.Body)
			if err != nil {
				return Traced[A]{}, err
			}
			tc, err := ExtractHeader(m.Header, header)
			if err != nil {
				return Traced[A]{}, err
			}
			return Traced[A]{Value: a, Context: tc}, nil
		},
		Encode: func(t Traced[A]) HTTPMessage {
			h := http.Header{}
			InjectHeader(h, header, t.Context)
			return HTTPMessage{Header: h, Body: body.Encode(t.Value)}
		},
	}
}
