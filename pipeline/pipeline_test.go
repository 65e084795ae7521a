package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/internal/perr"
	"github.com/appinsights-go/agent/mapper"
	"github.com/appinsights-go/agent/span"
)

type stubMapper struct {
	out []envelope.Envelope
	err error
}

func (m *stubMapper) Map(*span.Span) ([]envelope.Envelope, error) { return m.out, m.err }

type stubAggregator struct{ observed []envelope.Envelope }

func (a *stubAggregator) Observe(e *envelope.Envelope) { a.observed = append(a.observed, *e) }

type stubTransmitter struct {
	enqueued  []envelope.Envelope
	enqueueOK bool
	flushed   bool
	shutDown  bool
}

func (tx *stubTransmitter) Enqueue(e envelope.Envelope) error {
	if !tx.enqueueOK {
		return perr.New("transport", perr.Full, nil)
	}
	tx.enqueued = append(tx.enqueued, e)
	return nil
}

func (tx *stubTransmitter) Flush(time.Duration) bool { tx.flushed = true; return true }
func (tx *stubTransmitter) Shutdown(context.Context)  { tx.shutDown = true }

func newRequestEnvelope() envelope.Envelope {
	return envelope.New("ikey-1", "2024-01-01T00:00:00.000000+00:00", 0, nil,
		&envelope.RequestData{Name: "GET /", Duration: "0.00:00:01.000000", ResponseCode: "200", Success: true})
}

func TestSubmitStampsSampleRateAndDispatches(t *testing.T) {
	m := &stubMapper{out: []envelope.Envelope{newRequestEnvelope(), newRequestEnvelope()}}
	agg := &stubAggregator{}
	tx := &stubTransmitter{enqueueOK: true}

	c := New(m, agg, tx, "ikey-cfg")
	c.Submit(&span.Span{SpanID: "abc", TraceState: "ai_sampling=40"})

	require.Len(t, tx.enqueued, 2)
	for _, e := range tx.enqueued {
		assert.Equal(t, 40.0, e.SampleRate)
	}
	assert.Len(t, agg.observed, 2)
}

func TestSubmitDropsEmptyIKeyEnvelope(t *testing.T) {
	e := newRequestEnvelope()
	e.IKey = ""
	m := &stubMapper{out: []envelope.Envelope{e}}
	tx := &stubTransmitter{enqueueOK: true}

	c := New(m, nil, tx, "")
	c.Submit(&span.Span{SpanID: "abc"})

	assert.Empty(t, tx.enqueued)
}

func TestSubmitMapperErrorDoesNotPanic(t *testing.T) {
	m := &stubMapper{err: perr.New("mapper", perr.UnsupportedKind, errors.New("boom"))}
	tx := &stubTransmitter{enqueueOK: true}

	c := New(m, nil, tx, "ikey-cfg")
	assert.NotPanics(t, func() { c.Submit(&span.Span{SpanID: "abc"}) })
	assert.Empty(t, tx.enqueued)
}

func TestSubmitWithNilAggregator(t *testing.T) {
	m := &stubMapper{out: []envelope.Envelope{newRequestEnvelope()}}
	tx := &stubTransmitter{enqueueOK: true}

	c := New(m, nil, tx, "ikey-cfg")
	assert.NotPanics(t, func() { c.Submit(&span.Span{SpanID: "abc"}) })
	assert.Len(t, tx.enqueued, 1)
}

func TestShutdownFlushesThenStops(t *testing.T) {
	tx := &stubTransmitter{enqueueOK: true}
	c := New(&stubMapper{}, nil, tx, "ikey-cfg")

	c.Shutdown(context.Background())
	assert.True(t, tx.flushed)
	assert.True(t, tx.shutDown)
}

// A plain span carrying no ai.preview.instrumentation_key attribute must
// still reach the transmitter: the configured tenant key, not the preview
// override, is the default source of every envelope's iKey.
func TestSubmitRealMapperStampsConfiguredIKey(t *testing.T) {
	m := mapper.New(mapper.Config{IKey: "ikey-cfg"})
	tx := &stubTransmitter{enqueueOK: true}

	c := New(m, nil, tx, "ikey-cfg")
	c.Submit(&span.Span{
		SpanID: "0123456789abcdef",
		Kind:   span.KindServer,
		Name:   "/api/x",
	})

	require.Len(t, tx.enqueued, 1)
	assert.Equal(t, "ikey-cfg", tx.enqueued[0].IKey)
}
