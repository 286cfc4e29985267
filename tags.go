package orpheus

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Reserved tag keys. The span machine writes these when a TelemetryEvent is
// materialized and they overwrite user-supplied tags of the same name.
const (
	TagService      = "service"
	TagSpanID       = "span_id"
	TagParentSpanID = "parent_span_id"
	TagDuration     = "duration"
	TagSpanName     = "span_name"
	TagClientOp     = "client_op"
	TagRole         = "role"
	TagMessage      = "message"
	TagChannel      = "channel"
)

// TraceTags is an immutable mapping of tag key to value. A nil TraceTags is
// a valid empty map. Every operation returns a new map; the receiver is
// never modified.
type TraceTags map[string]string

// EmptyTags returns an empty tag map.
func EmptyTags() TraceTags {
	return TraceTags{}
}

// OfMap builds a TraceTags from a plain map, copying it.
func OfMap(m map[string]string) TraceTags {
	t := make(TraceTags, len(m))
	for k, v := range m {
		t[k] = v
	}
	return t
}

func (t TraceTags) clone(extra int) TraceTags {
	c := make(TraceTags, len(t)+extra)
	for k, v := range t {
		c[k] = v
	}
	return c
}

// AddString returns a copy of t with key set to value.
func (t TraceTags) AddString(key, value string) TraceTags {
	c := t.clone(1)
	c[key] = value
	return c
}

// AddInt32 encodes value in decimal.
func (t TraceTags) AddInt32(key string, value int32) TraceTags {
	return t.AddString(key, strconv.FormatInt(int64(value), 10))
}

// AddInt64 encodes value in decimal.
func (t TraceTags) AddInt64(key string, value int64) TraceTags {
	return t.AddString(key, strconv.FormatInt(value, 10))
}

// AddBool encodes value as "true" or "false".
func (t TraceTags) AddBool(key string, value bool) TraceTags {
	return t.AddString(key, strconv.FormatBool(value))
}

// AddTimeSpan encodes a duration as integer milliseconds.
func (t TraceTags) AddTimeSpan(key string, value time.Duration) TraceTags {
	return t.AddString(key, strconv.FormatInt(value.Milliseconds(), 10))
}

// AddIf sets key when value is non-nil, otherwise returns t unchanged.
func (t TraceTags) AddIf(key string, value *string) TraceTags {
	if value == nil {
		return t
	}
	return t.AddString(key, *value)
}

// AddTimeSpanIf sets key when value is non-nil, otherwise returns t unchanged.
func (t TraceTags) AddTimeSpanIf(key string, value *time.Duration) TraceTags {
	if value == nil {
		return t
	}
	return t.AddTimeSpan(key, *value)
}

// AddRole sets the role tag. The role must be non-empty.
func (t TraceTags) AddRole(role string) (TraceTags, error) {
	if role == "" {
		return nil, errors.New("role must not be empty")
	}
	return t.AddString(TagRole, role), nil
}

// AddChannel sets the channel tag. The channel name must be non-empty.
func (t TraceTags) AddChannel(channel string) (TraceTags, error) {
	if channel == "" {
		return nil, errors.New("channel must not be empty")
	}
	return t.AddString(TagChannel, channel), nil
}

// Merge unions a and b; on key collision the right operand wins.
func Merge(a, b TraceTags) TraceTags {
	c := a.clone(len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// FilterByTagPrefix keeps tags whose key starts with prefix,
// case-insensitively.
func (t TraceTags) FilterByTagPrefix(prefix string) TraceTags {
	p := strings.ToLower(prefix)
	c := TraceTags{}
	for k, v := range t {
		if strings.HasPrefix(strings.ToLower(k), p) {
			c[k] = v
		}
	}
	return c
}

// FilterByTags keeps only the given keys.
func (t TraceTags) FilterByTags(keys ...string) TraceTags {
	c := TraceTags{}
	for _, k := range keys {
		if v, ok := t[k]; ok {
			c[k] = v
		}
	}
	return c
}

// ExceptTags drops the given keys.
func (t TraceTags) ExceptTags(keys ...string) TraceTags {
	c := t.clone(0)
	for _, k := range keys {
		delete(c, k)
	}
	return c
}

// Get returns the value for key and whether it is present.
func (t TraceTags) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}
