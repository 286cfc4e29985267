package orpheus

import (
	"github.com/pkg/errors"
)

// Dec decodes a carrier representation into a domain value, returning a
// diagnostic error on failure.
type Dec[I, A any] func(I) (A, error)

// Enc encodes a domain value into a carrier representation. Total.
type Enc[O, A any] func(A) O

// TotalDec is a decoder that cannot fail. It is the only decoder shape
// accepted where the algebra requires tolerance of null or absent input.
type TotalDec[I, A any] func(I) A

// Codec pairs a decoder with an encoder.
type Codec[I, O, A any] struct {
	Decode Dec[I, A]
	Encode Enc[O, A]
}

// Total wraps dec into a TotalDec that substitutes fallback() on ANY decode
// failure, not merely absence.
func Total[I, A any](dec Dec[I, A], fallback func() A) TotalDec[I, A] {
	return func(in I) A {
		a, err := dec(in)
		if err != nil {
			return fallback()
		}
		return a
	}
}

// DefaultTraceField is the default embedding key for trace context.
const DefaultTraceField = "~trace"

// Carrier is the capability set the embedding combinators need from a
// concrete carrier value type: field lookup, field write and a null
// sentinel. Implemented once per binding (JSON bytes, Kafka headers, ...).
type Carrier[V any] interface {
	TryGet(v V, name string) (V, bool)
	Set(v V, name string, value V) V
	Null() V
}

// Traced pairs a decoded payload with the trace context extracted alongside
// it.
type Traced[A any] struct {
	Value   A
	Context TraceContext
}

// StrongEmbeddedField embeds the trace context under field name. Decoding
// fails when the field is absent.
func StrongEmbeddedField[V, A any](name string, car Carrier[V], ctx Codec[V, V, TraceContext], body Codec[V, V, A]) Codec[V, V, Traced[A]] {
	return Codec[V, V, Traced[A]]{
		Decode: func(in V) (Traced[A], error) {
			a, err := body.Decode(in)
			if err != nil {
				return Traced[A]{}, err
			}
			field, ok := car.TryGet(in, name)
			if !ok {
				return Traced[A]{}, errors.Errorf("property '%s' not found", name)
			}
			tc, err := ctx.Decode(field)
			if err != nil {
				return Traced[A]{}, err
			}
			return Traced[A]{Value: a, Context: tc}, nil
		},
		Encode: func(t Traced[A]) V {
			out := body.Encode(t.Value)
			return car.Set(out, name, ctx.Encode(t.Context))
		},
	}
}

// EmbeddedFieldWithFallback is identical to StrongEmbeddedField on the
// encode side. On decode, an absent field is replaced by the carrier's null
// sentinel and handed to ctxDec, which being total always yields a context.
func EmbeddedFieldWithFallback[V, A any](name string, car Carrier[V], ctxDec TotalDec[V, TraceContext], ctxEnc Enc[V, TraceContext], body Codec[V, V, A]) Codec[V, V, Traced[A]] {
	return Codec[V, V, Traced[A]]{
		Decode: func(in V) (Traced[A], error) {
			a, err := body.Decode(in)
			if err != nil {
				return Traced[A]{}, err
			}
			field, ok := car.TryGet(in, name)
			if !ok {
				field = car.Null()
			}
			return Traced[A]{Value: a, Context: ctxDec(field)}, nil
		},
		Encode: func(t Traced[A]) V {
			out := body.Encode(t.Value)
			return car.Set(out, name, ctxEnc(t.Context))
		},
	}
}
