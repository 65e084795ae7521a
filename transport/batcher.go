// Package transport is the transmitter (C6): batches envelopes, serializes
// and ships them over HTTP with retry/backoff, and falls back to a local
// spool when the ingestion endpoint is unhealthy and the in-memory buffer
// fills up.
package transport

import (
	"time"

	"github.com/appinsights-go/agent/envelope"
)

const (
	// DefaultBatchSize is N: the batch closes as soon as it holds this many
	// envelopes, even if the time window hasn't elapsed.
	DefaultBatchSize = 500
	// DefaultBatchWindow is M: the batch closes once this much time has
	// elapsed since the oldest queued envelope, even if it isn't full.
	DefaultBatchWindow = 2000 * time.Millisecond
	// DefaultQueueCapacity bounds the in-memory buffer before envelopes
	// spill to the local spool.
	DefaultQueueCapacity = 10000
)

// batcher groups queued envelopes into size- or time-bounded batches. It is
// not safe for concurrent use by multiple goroutines; the Transmitter's
// single drain loop owns it.
type batcher struct {
	maxSize   int
	maxWindow time.Duration

	pending   []envelope.Envelope
	oldestAt  time.Time
}

func newBatcher(maxSize int, maxWindow time.Duration) *batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatchSize
	}
	if maxWindow <= 0 {
		maxWindow = DefaultBatchWindow
	}
	return &batcher{maxSize: maxSize, maxWindow: maxWindow}
}

// add appends e to the pending batch, stamping the window start on the
// first addition.
func (b *batcher) add(e envelope.Envelope) {
	if len(b.pending) == 0 {
		b.oldestAt = time.Now()
	}
	b.pending = append(b.pending, e)
}

// ready reports whether the pending batch should close: full, or the
// window has elapsed since the oldest queued envelope.
func (b *batcher) ready() bool {
	if len(b.pending) == 0 {
		return false
	}
	if len(b.pending) >= b.maxSize {
		return true
	}
	return time.Since(b.oldestAt) >= b.maxWindow
}

// waitRemaining returns how long until the current batch's window expires;
// zero or negative means it is already due.
func (b *batcher) waitRemaining() time.Duration {
	if len(b.pending) == 0 {
		return b.maxWindow
	}
	return b.maxWindow - time.Since(b.oldestAt)
}

// take empties and returns the pending batch.
func (b *batcher) take() []envelope.Envelope {
	out := b.pending
	b.pending = nil
	return out
}

func (b *batcher) len() int { return len(b.pending) }
