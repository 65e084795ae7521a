package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appinsights-go/agent/correlation"
	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/span"
)

const (
	traceID  = "0123456789abcdef0123456789abcdef"
	spanID   = "0123456789abcdef"
	parentID = "fedcba9876543210"
)

func baseSpan() *span.Span {
	return &span.Span{
		TraceID:         traceID,
		SpanID:          spanID,
		ParentSpanID:    parentID,
		Attributes:      span.Attributes{},
		StartEpochNanos: 1_700_000_000_000_000_000,
		EndEpochNanos:   1_700_000_000_150_000_000,
	}
}

func TestMapNilSpanFails(t *testing.T) {
	m := New(Config{})
	_, err := m.Map(nil)
	assert.Error(t, err)
}

func TestMapUnsupportedSpanKindIsDropped(t *testing.T) {
	// a CLIENT/PRODUCER/CONSUMER/INTERNAL span is always claimed by either
	// the request or dependency path; KindUnspecified is the one kind with
	// no classification.
	m := New(Config{})
	s := baseSpan()
	s.Kind = span.KindUnspecified
	_, err := m.Map(s)
	require.Error(t, err)
}

// Scenario 1: HTTP CLIENT span, port 80 omitted from target.
func TestScenarioHTTPClientDependency(t *testing.T) {
	m := New(Config{})
	s := baseSpan()
	s.Kind = span.KindClient
	s.Attributes["http.method"] = span.StringAttr("GET")
	s.Attributes["http.url"] = span.StringAttr("http://example.com:80/x")
	s.Attributes["http.status_code"] = span.StringAttr("200")
	s.EndEpochNanos = s.StartEpochNanos + 150_000_000

	envs, err := m.Map(s)
	require.NoError(t, err)
	require.Len(t, envs, 1)

	d, ok := envs[0].Data.(*envelope.RemoteDependencyData)
	require.True(t, ok)
	assert.Equal(t, "Http", d.Type)
	assert.Equal(t, "example.com", d.Target, "default HTTP port 80 must be omitted")
	assert.Equal(t, "http://example.com:80/x", d.Data)
	assert.Equal(t, "200", d.ResultCode)
	assert.True(t, d.Success)
	assert.Equal(t, "00.00:00:00.150000", d.Duration)
}

// Scenario 2: SQL CLIENT span, default port 3306 omitted.
func TestScenarioSQLDependency(t *testing.T) {
	m := New(Config{})
	s := baseSpan()
	s.Kind = span.KindClient
	s.Attributes["db.system"] = span.StringAttr("mysql")
	s.Attributes["db.statement"] = span.StringAttr("select * from t")
	s.Attributes["db.name"] = span.StringAttr("shop")
	s.Attributes["net.peer.name"] = span.StringAttr("db1")
	s.Attributes["net.peer.port"] = span.IntAttr(3306)

	envs, err := m.Map(s)
	require.NoError(t, err)
	require.Len(t, envs, 1)

	d, ok := envs[0].Data.(*envelope.RemoteDependencyData)
	require.True(t, ok)
	assert.Equal(t, "SQL", d.Type)
	assert.Equal(t, "select * from t", d.Name)
	assert.Equal(t, "select * from t", d.Data)
	assert.Equal(t, "db1/shop", d.Target, "default MySQL port 3306 must be omitted")
}

// Scenario 3: SERVER span with a trace-state the mapper does not itself
// interpret (sampleRate is stamped by the pipeline coordinator, not the
// mapper); this only asserts the RequestData shape.
func TestScenarioServerRequest(t *testing.T) {
	m := New(Config{})
	s := baseSpan()
	s.Kind = span.KindServer
	s.Name = "/api/x"
	s.Attributes["http.method"] = span.StringAttr("POST")
	s.TraceState = "ai_sampling=25"

	envs, err := m.Map(s)
	require.NoError(t, err)
	require.Len(t, envs, 1)

	d, ok := envs[0].Data.(*envelope.RequestData)
	require.True(t, ok)
	assert.Equal(t, "POST /api/x", d.Name)
	assert.Equal(t, "200", d.ResponseCode)
	assert.True(t, d.Success)
	assert.Equal(t, traceID, envs[0].Tags[correlation.TagOperationID])
}

// Scenario 4: INTERNAL log span, no stack.
func TestScenarioLogMessage(t *testing.T) {
	m := New(Config{})
	s := baseSpan()
	s.Kind = span.KindInternal
	s.Name = "boom"
	s.Attributes["applicationinsights.internal.log"] = span.BoolAttr(true)
	s.Attributes["log_level"] = span.StringAttr("WARN")

	envs, err := m.Map(s)
	require.NoError(t, err)
	require.Len(t, envs, 1)

	d, ok := envs[0].Data.(*envelope.MessageData)
	require.True(t, ok)
	assert.Equal(t, "boom", d.Message)
	assert.Equal(t, envelope.SeverityWarning, d.SeverityLevel)
	assert.Equal(t, "Logger", d.Properties["SourceType"])
	assert.Equal(t, "WARN", d.Properties["LoggingLevel"])
}

// Scenario 5: span with an exception event on a CLIENT span.
func TestScenarioExceptionEvent(t *testing.T) {
	m := New(Config{})
	s := baseSpan()
	s.Kind = span.KindClient
	s.Events = []span.Event{{
		EpochNanos: s.StartEpochNanos + 1000,
		Name:       "exception",
		Attributes: span.Attributes{
			"exception.type":       span.StringAttr("E"),
			"exception.message":    span.StringAttr("m"),
			"exception.stacktrace": span.StringAttr("E: m\n  at ..."),
		},
	}}

	envs, err := m.Map(s)
	require.NoError(t, err)
	require.Len(t, envs, 2)

	dep, ok := envs[0].Data.(*envelope.RemoteDependencyData)
	require.True(t, ok)
	_ = dep

	exc, ok := envs[1].Data.(*envelope.ExceptionData)
	require.True(t, ok)
	require.Len(t, exc.Exceptions, 1)
	assert.Equal(t, "E", exc.Exceptions[0].TypeName)
	assert.Equal(t, "m", exc.Exceptions[0].Message)
	assert.True(t, exc.Exceptions[0].HasFullStack)

	assert.Equal(t, envs[0].Tags[correlation.TagOperationID], envs[1].Tags[correlation.TagOperationID])
	assert.Equal(t, s.SpanID, envs[1].Tags[correlation.TagOperationParentID])
}

func TestClassifyLogPathRequiresInternalKind(t *testing.T) {
	s := baseSpan()
	s.Kind = span.KindClient
	s.Attributes["applicationinsights.internal.log"] = span.BoolAttr(true)
	assert.Equal(t, pathDependency, classify(s), "the internal-log flag only applies to INTERNAL spans")
}

func TestClassifyConsumerWithRemoteParentIsRequest(t *testing.T) {
	s := baseSpan()
	s.Kind = span.KindConsumer
	s.ParentIsRemote = true
	assert.Equal(t, pathRequest, classify(s))
}

func TestClassifyConsumerProcessSpanExcluded(t *testing.T) {
	s := baseSpan()
	s.Kind = span.KindConsumer
	s.ParentIsRemote = true
	s.Name = "EventHubs.process"
	assert.Equal(t, pathDependency, classify(s))
}

func TestClassifySpringSchedulingInternalIsRequest(t *testing.T) {
	s := baseSpan()
	s.Kind = span.KindInternal
	s.ParentSpanID = ""
	s.InstrumentationName = "io.opentelemetry.spring-scheduling-3.1"
	assert.Equal(t, pathRequest, classify(s))
}

func TestLegacyParentIDOverride(t *testing.T) {
	s := baseSpan()
	s.Attributes["legacy_parent_id"] = span.StringAttr("legacyparent0001")
	tags := baseTags(s)
	assert.Equal(t, "legacyparent0001", tags[correlation.TagOperationParentID])
}

// A span with no ai.preview.instrumentation_key attribute must still get a
// non-empty IKey: the configured tenant key is the default source, not the
// preview override.
func TestMapStampsConfiguredIKeyWithNoPreviewAttribute(t *testing.T) {
	m := New(Config{IKey: "ikey-cfg"})
	s := baseSpan()
	s.Kind = span.KindServer
	s.Name = "/api/x"

	envs, err := m.Map(s)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "ikey-cfg", envs[0].IKey)
}

// The rare ai.preview.instrumentation_key attribute overrides the
// configured tenant key rather than replacing it as the sole source.
func TestMapPreviewAttributeOverridesConfiguredIKey(t *testing.T) {
	m := New(Config{IKey: "ikey-cfg"})
	s := baseSpan()
	s.Kind = span.KindServer
	s.Name = "/api/x"
	s.Attributes["ai.preview.instrumentation_key"] = span.StringAttr("ikey-preview")

	envs, err := m.Map(s)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "ikey-preview", envs[0].IKey)
}

func TestLinksPropertyExactJSON(t *testing.T) {
	m := New(Config{})
	s := baseSpan()
	s.Kind = span.KindClient
	s.Links = []span.Link{{TraceID: traceID, SpanID: spanID}}

	envs, err := m.Map(s)
	require.NoError(t, err)
	d := envs[0].Data.(*envelope.RemoteDependencyData)
	assert.Equal(t, `[{"operation_Id":"`+traceID+`","id":"`+spanID+`"}]`, d.Properties["_MS.links"])
}
