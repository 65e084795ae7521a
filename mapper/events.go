package mapper

import (
	"strings"

	"github.com/appinsights-go/agent/correlation"
	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/span"
	"github.com/appinsights-go/agent/xtime"
)

const skippedLettuceInstrumentation = "io.opentelemetry.javaagent.lettuce-5.1"

// mapEvents derives the synthetic Exception/Event envelopes from a span's
// events, in the order they appear on the span.
func (m *Mapper) mapEvents(s *span.Span, parentTags map[string]string) ([]envelope.Envelope, error) {
	var out []envelope.Envelope
	for _, ev := range s.Events {
		if skipEvent(s, ev) {
			continue
		}

		tags := cloneTags(parentTags)
		// The originating span becomes the synthetic envelope's parent
		// (scenario: "the exception has the span's id as its
		// operation.parentId").
		tags[correlation.TagOperationParentID] = s.SpanID

		typeName, hasType := ev.Attributes["exception.type"]
		msg, hasMsg := ev.Attributes["exception.message"]
		if hasType || hasMsg {
			e := buildEventException(m.cfg.IKey, ev, typeName.String(), msg.String(), tags)
			out = append(out, e)
			continue
		}

		out = append(out, buildEventData(m.cfg.IKey, ev, tags))
	}
	return out, nil
}

func skipEvent(s *span.Span, ev span.Event) bool {
	return s.InstrumentationName == skippedLettuceInstrumentation &&
		strings.HasPrefix(ev.Name, "redis.encode.")
}

func buildEventException(baseIKey string, ev span.Event, typeName, message string, tags map[string]string) envelope.Envelope {
	props, ikeyOverride := collectProperties(ev.Attributes, tags)
	stack, _ := ev.Attributes["exception.stacktrace"]
	data := &envelope.ExceptionData{
		Exceptions: []envelope.ExceptionDetail{{
			TypeName:     typeName,
			Message:      message,
			HasFullStack: stack.String() != "",
			Stack:        stack.String(),
		}},
		Properties: sanitizedProps(props),
	}
	return envelope.New(resolveIKey(baseIKey, ikeyOverride), xtime.FormatInstant(ev.EpochNanos), 0, tags, data)
}

func buildEventData(baseIKey string, ev span.Event, tags map[string]string) envelope.Envelope {
	props, ikeyOverride := collectProperties(ev.Attributes, tags)
	data := &envelope.EventData{
		Name:       ev.Name,
		Properties: sanitizedProps(props),
	}
	return envelope.New(resolveIKey(baseIKey, ikeyOverride), xtime.FormatInstant(ev.EpochNanos), 0, tags, data)
}
