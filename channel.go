package orpheus

import (
	"github.com/pkg/errors"
)

// Roles stamped by the channel wrappers.
const (
	RoleServer   = "server"
	RoleClient   = "client"
	RoleProducer = "producer"
	RoleConsumer = "consumer"
)

// Channel binds a tracer and publisher to a named transport. Request-reply
// and pub/sub wrappers are thin specializations over the span workflows; the
// span logic does not change across transports.
type Channel struct {
	tracer      *Tracer
	name        string
	defaultTags TraceTags
}

// NewChannel creates a channel. The name must be non-empty: it is stamped on
// every span the channel produces.
func NewChannel(tracer *Tracer, name string, defaultTags TraceTags) (*Channel, error) {
	if name == "" {
		return nil, errors.New("channel name must not be empty")
	}
	if defaultTags == nil {
		defaultTags = EmptyTags()
	}
	return &Channel{tracer: tracer, name: name, defaultTags: defaultTags}, nil
}

// Apply merges the channel's default tags into tags (tags win on collision)
// then stamps the channel name.
func (c *Channel) Apply(tags TraceTags) TraceTags {
	return Merge(c.defaultTags, tags).AddString(TagChannel, c.name)
}

func (c *Channel) roleTags(tags TraceTags, role string) TraceTags {
	return c.Apply(tags).AddString(TagRole, role)
}

// ServeChannel runs the request-reply server workflow on a channel,
// stamping channel and server-role tags.
func ServeChannel[I, O, A, B any](c *Channel, name string, dec Dec[I, Traced[A]], enc Enc[O, Traced[B]], tags TraceTags, handler Handler[A, B], input I) (O, error) {
	return Serve(c.tracer, name, dec, enc, c.roleTags(tags, RoleServer), handler, input)
}

// CallChannel runs the request-reply client workflow on a channel,
// stamping channel and client-role tags.
func CallChannel[O, I, B, A any](c *Channel, parent Span, name string, enc Enc[O, Traced[B]], dec Dec[I, Traced[A]], tags TraceTags, transport Transport[O, I], value B) (A, error) {
	return Call(c.tracer, parent, name, enc, dec, c.roleTags(tags, RoleClient), transport, value)
}

// Produce publishes value on a pub/sub channel under a producer span. There
// is no reply to acknowledge: the span completes once send returns.
func Produce[O, B any](c *Channel, parent Span, name string, enc Enc[O, Traced[B]], tags TraceTags, send func(O) error, value B) error {
	span, out := StartPropagate(c.tracer, parent, name, enc, c.roleTags(tags, RoleProducer), value)

	if err := send(out); err != nil {
		c.tracer.Errored(err.Error(), span) //nolint:errcheck // original send error takes precedence
		return err
	}

	_, err := c.tracer.Complete(span)
	return err
}

// Consume handles one inbound pub/sub message under a consumer span. A
// handler error marks the span errored and is returned unchanged.
func Consume[I, A any](c *Channel, name string, dec Dec[I, Traced[A]], tags TraceTags, handler func(Span, A) error, input I) error {
	span, value, err := DecodeStart(c.tracer, name, dec, c.roleTags(tags, RoleConsumer), input)
	if err != nil {
		return err
	}

	if err := handler(span, value); err != nil {
		c.tracer.Errored(err.Error(), span) //nolint:errcheck // original handler error takes precedence
		return err
	}

	_, err = c.tracer.Complete(span)
	return err
}
