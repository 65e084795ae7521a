package transport

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/internal/log"
	"github.com/appinsights-go/agent/internal/perr"
	"github.com/appinsights-go/agent/internal/retry"
	"github.com/appinsights-go/agent/internal/spool"
)

// Config configures a Transmitter. Zero values fall back to package
// defaults for batching, queue capacity, and retry behavior.
type Config struct {
	Endpoint     string
	IKey         string
	BatchSize    int
	BatchWindow  time.Duration
	QueueCap     int
	SpoolDir     string
	SpoolMaxSize int64
	Gzip         bool
}

// Transmitter is the C6 component: a bounded in-memory queue drained by a
// single worker into batches, delivered over HTTP with status-driven
// retry/backoff, spilling to a local spool once the queue fills.
type Transmitter struct {
	cfg Config

	mu     sync.Mutex
	queue  []envelope.Envelope
	closed bool

	notify chan struct{}
	done   chan struct{}

	sender  *httpSender
	batcher *batcher
	backoff retry.Policy
	spool   *spool.Spool
	onceLog *log.KeyedOnce

	pausedUntil pauseGate

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// pauseGate tracks the instant the backoff policy's pause expires, so the
// drain loop can check "are we paused" without inspecting the policy
// itself (which only hands out one interval at a time).
type pauseGate struct {
	mu sync.Mutex
	t  time.Time
}

func (p *pauseGate) set(t time.Time) {
	p.mu.Lock()
	p.t = t
	p.mu.Unlock()
}

func (p *pauseGate) get() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.t
}

// New builds a Transmitter. If cfg.SpoolDir is empty, spooling is disabled
// and envelopes are simply dropped (with a Full error) once the queue caps
// out — callers embedding this in a hosted agent should always set it.
func New(cfg Config) (*Transmitter, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = DefaultBatchWindow
	}
	if cfg.QueueCap <= 0 {
		cfg.QueueCap = DefaultQueueCapacity
	}

	t := &Transmitter{
		cfg:     cfg,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		sender:  newHTTPSender(cfg.Endpoint, cfg.IKey),
		batcher: newBatcher(cfg.BatchSize, cfg.BatchWindow),
		backoff: retry.NewExponential(500*time.Millisecond, 60*time.Second),
		onceLog: log.NewKeyedOnce(),
	}

	if cfg.SpoolDir != "" {
		sp, err := spool.Open(cfg.SpoolDir, cfg.SpoolMaxSize)
		if err != nil {
			return nil, err
		}
		t.spool = sp
	}
	return t, nil
}

// Enqueue adds e to the in-memory queue, spilling to spool once the queue
// is at capacity. Never blocks.
func (t *Transmitter) Enqueue(e envelope.Envelope) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return perr.New("transport", perr.Shutdown, nil)
	}
	if len(t.queue) >= t.cfg.QueueCap {
		t.mu.Unlock()
		return t.spillToSpool(e)
	}
	t.queue = append(t.queue, e)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

func (t *Transmitter) spillToSpool(e envelope.Envelope) error {
	if t.spool == nil {
		return perr.New("transport", perr.Full, nil)
	}
	body, err := encodeBatch([]envelope.Envelope{e})
	if err != nil {
		return perr.New("transport", perr.InvalidInput, err)
	}
	if _, err := t.spool.Write(body, false, 0); err != nil {
		return perr.New("transport", perr.Full, err)
	}
	return nil
}

func (t *Transmitter) drainQueueLocked() []envelope.Envelope {
	out := t.queue
	t.queue = nil
	return out
}

// Run drives the drain loop until ctx is cancelled. It is meant to run as
// the transmitter's single background worker.
func (t *Transmitter) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancelMu.Lock()
	t.cancel = cancel
	t.cancelMu.Unlock()
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		// Shutdown ran before cancel was registered above.
		cancel()
	}
	defer cancel()
	defer close(t.done)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	spoolTicker := time.NewTicker(5 * time.Second)
	defer spoolTicker.Stop()

	for {
		t.mu.Lock()
		for _, e := range t.drainQueueLocked() {
			t.batcher.add(e)
		}
		t.mu.Unlock()

		if t.batcher.ready() {
			t.deliver(ctx, t.batcher.take())
		}

		select {
		case <-ctx.Done():
			t.flushRemaining(context.Background())
			return
		case <-t.notify:
		case <-ticker.C:
		case <-spoolTicker.C:
			t.drainSpoolOnce(ctx)
		}
	}
}

func (t *Transmitter) flushRemaining(ctx context.Context) {
	t.mu.Lock()
	for _, e := range t.drainQueueLocked() {
		t.batcher.add(e)
	}
	t.mu.Unlock()
	if t.batcher.len() > 0 {
		t.deliver(ctx, t.batcher.take())
	}
}

// deliver ships one batch, applying the retry/backoff and drop policies.
// On outcomeRetryable it blocks on the backoff interval (honoring
// cancellation) and then redispatches the same batch; on outcomeDropped it
// logs once per status code and gives up on the batch.
func (t *Transmitter) deliver(ctx context.Context, batch []envelope.Envelope) {
	if len(batch) == 0 {
		return
	}
	body, err := encodeBatch(batch)
	if err != nil {
		log.Error("transport: dropping batch of %d: %v", len(batch), err)
		return
	}

	gzipped := t.cfg.Gzip
	if gzipped {
		if compressed, cErr := gzipCompress(body); cErr == nil {
			body = compressed
		} else {
			gzipped = false
		}
	}

	for {
		if wait := time.Until(t.pausedUntil.get()); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		status, out, sendErr := t.sender.send(ctx, body, gzipped)
		switch out {
		case outcomeAck:
			t.backoff.Reset()
			return
		case outcomeDropped:
			t.onceLog.Do(httpStatusKey(status), func() {
				log.Warn("transport: batch rejected with status %d, dropping %d envelopes", status, len(batch))
			})
			return
		case outcomeRetryable:
			interval := t.backoff.NextInterval()
			t.pausedUntil.set(time.Now().Add(interval))
			if sendErr != nil {
				log.Warn("transport: delivery error, retrying in %s: %v", interval, sendErr)
			} else {
				log.Warn("transport: status %d, retrying in %s", status, interval)
			}
			select {
			case <-ctx.Done():
				t.spillToSpoolBatch(batch)
				return
			case <-time.After(interval):
			}
		}
	}
}

func (t *Transmitter) spillToSpoolBatch(batch []envelope.Envelope) {
	if t.spool == nil || len(batch) == 0 {
		return
	}
	body, err := encodeBatch(batch)
	if err != nil {
		return
	}
	t.spool.Write(body, false, 0)
}

// drainSpoolOnce replays the oldest spooled batch if the transmitter is not
// currently paused for backoff.
func (t *Transmitter) drainSpoolOnce(ctx context.Context) {
	if t.spool == nil {
		return
	}
	if time.Now().Before(t.pausedUntil.get()) {
		return
	}
	names, err := t.spool.List()
	if err != nil || len(names) == 0 {
		return
	}
	name := names[0]
	hdr, body, err := t.spool.Read(name)
	if err != nil {
		return
	}

	status, out, sendErr := t.sender.send(ctx, body, hdr.Gzip())
	switch out {
	case outcomeAck:
		t.spool.Delete(name)
		t.backoff.Reset()
	case outcomeDropped:
		t.onceLog.Do(httpStatusKey(status), func() {
			log.Warn("transport: spooled batch %s rejected with status %d, dropping", name, status)
		})
		t.spool.Delete(name)
	case outcomeRetryable:
		interval := t.backoff.NextInterval()
		t.pausedUntil.set(time.Now().Add(interval))
		if sendErr != nil {
			log.Warn("transport: spool replay error, backing off %s: %v", interval, sendErr)
		}
	}
}

func httpStatusKey(status int) string {
	return "status:" + strconv.Itoa(status)
}

// Flush blocks until the in-memory queue and current batch have been
// delivered, or timeout elapses).
func (t *Transmitter) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		t.mu.Lock()
		empty := len(t.queue) == 0 && t.batcher.len() == 0
		t.mu.Unlock()
		if empty {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Shutdown flushes then stops the transmitter, honoring the overall
// deadline.
func (t *Transmitter) Shutdown(ctx context.Context) {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.cancelMu.Lock()
	cancel := t.cancel
	t.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	select {
	case <-t.done:
	case <-ctx.Done():
	}
}
