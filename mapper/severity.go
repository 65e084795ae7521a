package mapper

import "github.com/appinsights-go/agent/envelope"

// severityByLogLevel implements the log_level → severityLevel mapping
// used by the log classification path.
var severityByLogLevel = map[string]envelope.SeverityLevel{
	"FATAL":   envelope.SeverityCritical,
	"ERROR":   envelope.SeverityError,
	"SEVERE":  envelope.SeverityError,
	"WARN":    envelope.SeverityWarning,
	"WARNING": envelope.SeverityWarning,
	"INFO":    envelope.SeverityInformation,
	"DEBUG":   envelope.SeverityVerbose,
	"TRACE":   envelope.SeverityVerbose,
	"CONFIG":  envelope.SeverityVerbose,
	"FINE":    envelope.SeverityVerbose,
	"FINER":   envelope.SeverityVerbose,
	"FINEST":  envelope.SeverityVerbose,
	"ALL":     envelope.SeverityVerbose,
}

func severityForLogLevel(level string) envelope.SeverityLevel {
	if s, ok := severityByLogLevel[level]; ok {
		return s
	}
	return envelope.SeverityVerbose
}
