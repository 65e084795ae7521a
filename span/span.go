// Package span defines the immutable span record the mapper consumes.
// Spans arrive already finalized by an external instrumentation agent;
// this package owns no lifecycle, only the shape of the data.
package span

import (
	"strconv"
	"strings"
)

// Kind is the OpenTelemetry-style span kind.
type Kind int

const (
	KindUnspecified Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "SERVER"
	case KindClient:
		return "CLIENT"
	case KindProducer:
		return "PRODUCER"
	case KindConsumer:
		return "CONSUMER"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNSPECIFIED"
	}
}

// StatusCode mirrors the OTel status enum.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Status is the span's terminal status.
type Status struct {
	Code        StatusCode
	Description string
}

// AttrKind tags the dynamic type carried by an Attribute value.
type AttrKind int

const (
	AttrString AttrKind = iota
	AttrBool
	AttrInt
	AttrFloat
	AttrArray
)

// Attribute is a single typed semantic-convention attribute.
type Attribute struct {
	Kind    AttrKind
	Str     string
	Bool    bool
	Int     int64
	Float   float64
	Strings []string // used when Kind == AttrArray; joined with ", " by the mapper
}

// StringAttr builds a string attribute.
func StringAttr(v string) Attribute { return Attribute{Kind: AttrString, Str: v} }

// BoolAttr builds a bool attribute.
func BoolAttr(v bool) Attribute { return Attribute{Kind: AttrBool, Bool: v} }

// IntAttr builds an int attribute.
func IntAttr(v int64) Attribute { return Attribute{Kind: AttrInt, Int: v} }

// FloatAttr builds a float attribute.
func FloatAttr(v float64) Attribute { return Attribute{Kind: AttrFloat, Float: v} }

// ArrayAttr builds an array-of-strings attribute.
func ArrayAttr(v []string) Attribute { return Attribute{Kind: AttrArray, Strings: v} }

// Attributes is a span/event attribute bag.
type Attributes map[string]Attribute

// String returns the attribute's display form for property copying and for
// callers that only care about the stringified value (arrays are joined).
func (a Attribute) String() string {
	switch a.Kind {
	case AttrString:
		return a.Str
	case AttrBool:
		if a.Bool {
			return "true"
		}
		return "false"
	case AttrInt:
		return strconv.FormatInt(a.Int, 10)
	case AttrFloat:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	case AttrArray:
		return strings.Join(a.Strings, ", ")
	default:
		return ""
	}
}

// Event is a timed annotation attached to a span.
type Event struct {
	EpochNanos int64
	Name       string
	Attributes Attributes
}

// Link references another span, typically in a different trace.
type Link struct {
	TraceID string // lowercase hex, 32 chars
	SpanID  string // lowercase hex, 16 chars
}

// Span is the immutable input record.
type Span struct {
	TraceID             string // lowercase hex, 32 chars
	SpanID              string // lowercase hex, 16 chars
	ParentSpanID        string // lowercase hex, 16 chars; empty if root
	ParentIsRemote      bool   // true when the parent context was extracted from an incoming request
	Kind                Kind
	Name                string
	StartEpochNanos     int64
	EndEpochNanos       int64
	Status              Status
	InstrumentationName string
	Attributes          Attributes
	Events              []Event
	Links               []Link
	TraceState          string // W3C opaque string; carries "ai_sampling=<pct>"
}

// Attr looks up an attribute, reporting whether it was present.
func (s *Span) Attr(key string) (Attribute, bool) {
	if s == nil || s.Attributes == nil {
		return Attribute{}, false
	}
	a, ok := s.Attributes[key]
	return a, ok
}

// AttrString is a convenience for the common string-or-empty lookup.
func (s *Span) AttrString(key string) (string, bool) {
	a, ok := s.Attr(key)
	if !ok {
		return "", false
	}
	return a.String(), true
}

// DurationNanos is the wall-clock span duration.
func (s *Span) DurationNanos() int64 {
	if s.EndEpochNanos < s.StartEpochNanos {
		return 0
	}
	return s.EndEpochNanos - s.StartEpochNanos
}

