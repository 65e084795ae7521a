package mapper

import (
	"strings"

	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/span"
)

// mapLogPath handles the internal-log classification branch:
// an exception when a stack is attached, otherwise a plain message.
func (m *Mapper) mapLogPath(s *span.Span, tags map[string]string) (envelope.Envelope, error) {
	tags = cloneTags(tags)
	props, ikeyOverride := collectProperties(s.Attributes, tags)
	props["SourceType"] = "Logger"
	if level, ok := s.AttrString("log_level"); ok {
		props["LoggingLevel"] = level
	}

	if stack, ok := s.AttrString("log_error_stack"); ok {
		typeName, message := splitExceptionFirstLine(stack)
		data := &envelope.ExceptionData{
			Exceptions: []envelope.ExceptionDetail{{
				TypeName:     typeName,
				Message:      message,
				HasFullStack: true,
				Stack:        stack,
			}},
			SeverityLevel: severityForLogLevel(logLevelOf(s)),
			Properties:    sanitizedProps(props),
		}
		return envelope.New(resolveIKey(m.cfg.IKey, ikeyOverride), formatSpanTime(s), 0, tags, data), nil
	}

	data := &envelope.MessageData{
		Message:       s.Name,
		SeverityLevel: severityForLogLevel(logLevelOf(s)),
		Properties:    sanitizedProps(props),
	}
	return envelope.New(resolveIKey(m.cfg.IKey, ikeyOverride), formatSpanTime(s), 0, tags, data), nil
}

func logLevelOf(s *span.Span) string {
	level, _ := s.AttrString("log_level")
	return level
}

// splitExceptionFirstLine parses the conventional "Type: message" first
// line of a stack trace string.
func splitExceptionFirstLine(stack string) (typeName, message string) {
	firstLine := stack
	if idx := strings.IndexByte(stack, '\n'); idx >= 0 {
		firstLine = stack[:idx]
	}
	if idx := strings.Index(firstLine, ": "); idx >= 0 {
		return firstLine[:idx], firstLine[idx+2:]
	}
	return firstLine, ""
}
