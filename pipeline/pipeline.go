// Package pipeline is the coordinator (C7): it owns the mapper, wires its
// output to the live-metrics aggregator and the transmitter, stamps
// sampleRate from each span's trace-state, and owns startup/shutdown
// ordering.
package pipeline

import (
	"context"
	"time"

	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/internal/log"
	"github.com/appinsights-go/agent/internal/perr"
	"github.com/appinsights-go/agent/span"
)

// Mapper is the subset of mapper.Mapper the coordinator depends on.
type Mapper interface {
	Map(s *span.Span) ([]envelope.Envelope, error)
}

// Aggregator is the subset of livemetrics.Aggregator the coordinator
// depends on.
type Aggregator interface {
	Observe(e *envelope.Envelope)
}

// Transmitter is the subset of transport.Transmitter the coordinator
// depends on.
type Transmitter interface {
	Enqueue(e envelope.Envelope) error
	Flush(timeout time.Duration) bool
	Shutdown(ctx context.Context)
}

// Coordinator receives finalized spans on the caller's own goroutine,
// maps them synchronously, and fans the resulting envelopes out to the
// aggregator (if configured) and the transmitter.
type Coordinator struct {
	mapper      Mapper
	aggregator  Aggregator // nil when live metrics are disabled
	transmitter Transmitter
	ikey        string // configured tenant key, stamped on any envelope the mapper left unset
}

// New builds a Coordinator. aggregator may be nil. ikey is the process's
// configured tenant key (internal/config.Config.IKey); it is stamped onto
// any envelope the mapper returns with no iKey of its own.
func New(mapper Mapper, aggregator Aggregator, transmitter Transmitter, ikey string) *Coordinator {
	return &Coordinator{mapper: mapper, aggregator: aggregator, transmitter: transmitter, ikey: ikey}
}

// Submit maps s and dispatches every resulting envelope. It runs on the
// caller's thread — the mapper never blocks on I/O — and never returns an
// error to the caller: mapper/enqueue failures are logged and contained
// here, so no failure ever propagates out to the instrumented application.
func (c *Coordinator) Submit(s *span.Span) {
	envelopes, err := c.mapper.Map(s)
	if err != nil {
		if perr.Is(err, perr.UnsupportedKind) {
			log.Debug("pipeline: dropping span %s: %v", s.SpanID, err)
		} else {
			log.Warn("pipeline: mapper error for span %s: %v", s.SpanID, err)
		}
		return
	}

	rate := parseSampleRate(s.TraceState)
	for i := range envelopes {
		envelopes[i].SampleRate = rate
		if envelopes[i].IKey == "" {
			envelopes[i].IKey = c.ikey
		}
		c.dispatch(envelopes[i])
	}
}

func (c *Coordinator) dispatch(e envelope.Envelope) {
	if e.IKey == "" {
		return // envelopes with no iKey are dropped before transmission, never sent
	}
	if c.aggregator != nil {
		c.aggregator.Observe(&e)
	}
	if err := c.transmitter.Enqueue(e); err != nil {
		log.Warn("pipeline: enqueue failed for %s: %v", e.Name, err)
	}
}

// Shutdown flushes the transmitter then stops it. The aggregator itself has
// no explicit stop method; callers cancel the context driving its Run
// loop after this returns.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.transmitter.Flush(30 * time.Second)
	c.transmitter.Shutdown(ctx)
}
