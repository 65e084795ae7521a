// Package envelope defines the wire schema: a tagged variant covering the
// five telemetry kinds (Request, RemoteDependency, Message, Exception,
// Event) plus the tags and fields every kind shares. This package only
// constructs and validates envelopes; serialization to the newline-
// delimited JSON transport form lives in the transport package, which
// copies an Envelope's fields into its own wire struct.
package envelope

import "github.com/google/uuid"

// SeverityLevel mirrors the wire schema's severity enum, used by Message
// and Exception data.
type SeverityLevel string

const (
	SeverityVerbose     SeverityLevel = "VERBOSE"
	SeverityInformation SeverityLevel = "INFORMATION"
	SeverityWarning     SeverityLevel = "WARNING"
	SeverityError       SeverityLevel = "ERROR"
	SeverityCritical    SeverityLevel = "CRITICAL"
)

// Data is implemented by each of the five concrete envelope bodies.
type Data interface {
	// BaseType names the variant for the wire schema's "baseType" field,
	// e.g. "RequestData".
	BaseType() string
}

// Envelope is the common wire shape; Data carries the variant-specific
// body.
type Envelope struct {
	ID         string            `json:"id,omitempty"` // idempotent-friendly envelope id (not part of wire baseType, carried for de-dup)
	IKey       string            `json:"iKey"`
	Time       string            `json:"time"`
	SampleRate float64           `json:"sampleRate"`
	Tags       map[string]string `json:"tags"`
	Name       string            `json:"name"`
	Data       Data              `json:"data"`
}

// New builds an envelope with a freshly generated idempotent-friendly ID.
// Duplicate delivery of the same envelope at the transport layer is
// acceptable; the ID exists so downstream
// consumers can de-duplicate if they choose to.
func New(ikey string, t string, sampleRate float64, tags map[string]string, data Data) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		IKey:       ikey,
		Time:       t,
		SampleRate: sampleRate,
		Tags:       tags,
		Name:       envelopeName(data),
		Data:       data,
	}
}

func envelopeName(d Data) string {
	switch d.(type) {
	case *RequestData:
		return "Microsoft.ApplicationInsights.Request"
	case *RemoteDependencyData:
		return "Microsoft.ApplicationInsights.RemoteDependency"
	case *MessageData:
		return "Microsoft.ApplicationInsights.Message"
	case *ExceptionData:
		return "Microsoft.ApplicationInsights.Exception"
	case *EventData:
		return "Microsoft.ApplicationInsights.Event"
	default:
		return "Microsoft.ApplicationInsights.Unknown"
	}
}
