// Package mapper classifies a span and builds the envelope(s) it produces.
// It is the central component of the pipeline: a small decision
// tree over span kind, instrumentation name and attribute presence,
// expressed as an explicit ordered match rather than an inheritance
// hierarchy.
package mapper

import (
	"fmt"
	"strings"

	"github.com/appinsights-go/agent/correlation"
	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/internal/perr"
	"github.com/appinsights-go/agent/sanitize"
	"github.com/appinsights-go/agent/span"
	"github.com/appinsights-go/agent/xtime"
)

const component = "mapper"

// Config carries the small amount of self-identity the mapper needs to
// decide whether a dependency target points at this service or another
// one, plus the tenant key stamped onto every envelope it builds.
type Config struct {
	// SelfAppID is compared against ai.span.target.app_id /
	// ai.span.source.app_id.
	SelfAppID string

	// IKey is the process's configured tenant key. It is the base value
	// for every envelope's IKey field; a span carrying the legacy
	// "ai.preview.instrumentation_key" attribute overrides it.
	IKey string
}

// resolveIKey applies the ai.preview.instrumentation_key override onto the
// configured tenant key: override wins when present, base otherwise.
func resolveIKey(base, override string) string {
	if override != "" {
		return override
	}
	return base
}

// Mapper maps spans onto envelopes. It holds no mutable state and is safe
// for concurrent use by multiple caller goroutines.
type Mapper struct {
	cfg Config
}

// New constructs a Mapper.
func New(cfg Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// Map classifies s and builds the envelope(s) it produces: exactly one
// primary envelope (Request or RemoteDependency) for the span itself when
// a request/dependency path is taken, exactly one envelope (Message or
// Exception) for the log path, plus zero or more synthetic Event/Exception
// envelopes derived from the span's events.
//
// sampleRate is not set here; the pipeline coordinator (C7) stamps it onto
// every returned envelope from the span's trace-state so that the
// mapper's contract stays pure and I/O-free.
func (m *Mapper) Map(s *span.Span) ([]envelope.Envelope, error) {
	if s == nil {
		return nil, perr.New(component, perr.InvalidInput, fmt.Errorf("nil span"))
	}

	tags := baseTags(s)
	var out []envelope.Envelope

	switch classify(s) {
	case pathLog:
		env, err := m.mapLogPath(s, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	case pathRequest:
		env, err := m.mapRequest(s, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	case pathDependency:
		env, err := m.mapDependency(s, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	default:
		return nil, perr.New(component, perr.UnsupportedKind, fmt.Errorf("span kind %s", s.Kind))
	}

	eventEnvelopes, err := m.mapEvents(s, tags)
	if err != nil {
		return nil, err
	}
	out = append(out, eventEnvelopes...)

	return out, nil
}

type classification int

const (
	pathUnsupported classification = iota
	pathLog
	pathRequest
	pathDependency
)

// classify implements the ordered log/request/dependency decision tree.
func classify(s *span.Span) classification {
	if isLogPath(s) {
		return pathLog
	}
	if isRequestPath(s) {
		return pathRequest
	}
	if isDependencyPath(s) {
		return pathDependency
	}
	return pathUnsupported
}

func isLogPath(s *span.Span) bool {
	if s.Kind != span.KindInternal {
		return false
	}
	a, ok := s.Attr("applicationinsights.internal.log")
	return ok && a.Kind == span.AttrBool && a.Bool
}

func isRequestPath(s *span.Span) bool {
	switch {
	case s.Kind == span.KindServer:
		return true
	case s.Kind == span.KindConsumer && s.ParentIsRemote && !isExcludedProcessSpanName(s.Name):
		return true
	case s.Kind == span.KindInternal && strings.Contains(s.InstrumentationName, "spring-scheduling") && !correlation.SpanID(s.ParentSpanID):
		return true
	default:
		return false
	}
}

func isExcludedProcessSpanName(name string) bool {
	return name == "EventHubs.process" || name == "ServiceBus.process"
}

func isDependencyPath(s *span.Span) bool {
	switch s.Kind {
	case span.KindClient, span.KindProducer:
		return true
	case span.KindConsumer:
		return true // CONSUMER without a remote parent, or excluded by name above
	case span.KindInternal:
		return true // any INTERNAL span not claimed by the log or request path
	default:
		return false
	}
}

// baseTags seeds the tags every envelope carries: operation id and, when
// valid, the parent id.
func baseTags(s *span.Span) map[string]string {
	tags := map[string]string{
		correlation.TagOperationID: s.TraceID,
	}
	if parentID, ok := legacyParentID(s); ok {
		tags[correlation.TagOperationParentID] = parentID
	}
	if rootID, ok := s.AttrString("legacy_root_id"); ok {
		tags[correlation.TagLegacyRootID] = rootID
	}
	return tags
}

// legacyParentID resolves operation.parentId: an injected
// "legacy_parent_id" attribute overrides the span's own parent id.
func legacyParentID(s *span.Span) (string, bool) {
	if v, ok := s.AttrString("legacy_parent_id"); ok {
		return v, true
	}
	if correlation.SpanID(s.ParentSpanID) {
		return s.ParentSpanID, true
	}
	return "", false
}

func cloneTags(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func formatSpanTime(s *span.Span) string {
	return xtime.FormatInstant(s.StartEpochNanos)
}

func formatSpanDuration(s *span.Span) (string, error) {
	d, err := xtime.FormatDuration(s.DurationNanos())
	if err != nil {
		return "", perr.New(component, perr.InvalidInput, err)
	}
	return d, nil
}

func isSuccess(s *span.Span) bool {
	return s.Status.Code != span.StatusError
}

func sanitizedProps(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	return sanitize.SanitizeProperties(in)
}
