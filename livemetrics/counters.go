// Package livemetrics maintains concurrent aggregate counters derived
// from the envelope stream and streams per-second snapshots to a
// secondary control endpoint while a subscriber is attached.
package livemetrics

import (
	"go.uber.org/atomic"

	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/xtime"
)

const (
	countBits    = 20
	durationBits = 44
	maxCount     = (1 << countBits) - 1
	maxDuration  = (1 << durationBits) - 1
)

// encode packs a (count, durationMs) pair into a single 64-bit word: count
// in the top 20 bits, duration in the bottom 44.
// Both fields saturate rather than wrap on overflow — a documented,
// bounded precision loss.
func encode(count, durationMs int64) int64 {
	if count > maxCount {
		count = maxCount
	}
	if count < 0 {
		count = 0
	}
	if durationMs > maxDuration {
		durationMs = maxDuration
	}
	if durationMs < 0 {
		durationMs = 0
	}
	return (count << durationBits) | durationMs
}

func decode(packed int64) (count, durationMs int64) {
	return packed >> durationBits, packed & maxDuration
}

// Counters is the process-wide singleton's atomic state: a single pair of
// packed 64-bit atomics plus three 32-bit atomic counters, with no lock held
// across an envelope update.
type Counters struct {
	exceptions                          atomic.Int32
	requestsEncodedCountAndDuration     atomic.Int64
	unsuccessfulRequests                atomic.Int32
	dependenciesEncodedCountAndDuration atomic.Int64
	unsuccessfulDependencies            atomic.Int32
}

// NewCounters returns a freshly zeroed Counters.
func NewCounters() *Counters { return &Counters{} }

// Add folds one observed envelope into the counters. Envelopes whose iKey
// does not match the aggregator's configured iKey are filtered out by the
// caller (Aggregator.Observe) before Add is ever reached.
func (c *Counters) Add(e *envelope.Envelope) {
	switch d := e.Data.(type) {
	case *envelope.RequestData:
		c.addRequest(d)
	case *envelope.RemoteDependencyData:
		c.addDependency(d)
	case *envelope.ExceptionData:
		c.exceptions.Add(1)
	}
}

func (c *Counters) addRequest(d *envelope.RequestData) {
	ms := durationMsFromWire(d.Duration)
	for {
		old := c.requestsEncodedCountAndDuration.Load()
		oldCount, oldDur := decode(old)
		next := encode(oldCount+1, oldDur+ms)
		if c.requestsEncodedCountAndDuration.CAS(old, next) {
			break
		}
	}
	if !d.Success {
		c.unsuccessfulRequests.Add(1)
	}
}

func (c *Counters) addDependency(d *envelope.RemoteDependencyData) {
	ms := durationMsFromWire(d.Duration)
	for {
		old := c.dependenciesEncodedCountAndDuration.Load()
		oldCount, oldDur := decode(old)
		next := encode(oldCount+1, oldDur+ms)
		if c.dependenciesEncodedCountAndDuration.CAS(old, next) {
			break
		}
	}
	if !d.Success {
		c.unsuccessfulDependencies.Add(1)
	}
}

// Snapshot is a consistent, already-decoded read of one counters instance.
type Snapshot struct {
	Requests                 int64
	RequestsDurationMs       int64
	UnsuccessfulRequests     int32
	Dependencies             int64
	DependenciesDurationMs   int64
	UnsuccessfulDependencies int32
	Exceptions               int32
}

// durationMsFromWire recovers a duration in milliseconds from the wire
// "D.HH:MM:SS.mmmmmm" string; a malformed duration contributes zero rather
// than failing the whole envelope observation.
func durationMsFromWire(wire string) int64 {
	nanos, err := xtime.ParseDuration(wire)
	if err != nil {
		return 0
	}
	return nanos / 1_000_000
}

func (c *Counters) read() Snapshot {
	reqCount, reqDur := decode(c.requestsEncodedCountAndDuration.Load())
	depCount, depDur := decode(c.dependenciesEncodedCountAndDuration.Load())
	return Snapshot{
		Requests:                 reqCount,
		RequestsDurationMs:       reqDur,
		UnsuccessfulRequests:     c.unsuccessfulRequests.Load(),
		Dependencies:             depCount,
		DependenciesDurationMs:   depDur,
		UnsuccessfulDependencies: c.unsuccessfulDependencies.Load(),
		Exceptions:               c.exceptions.Load(),
	}
}
