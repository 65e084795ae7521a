package livemetrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	uatomic "go.uber.org/atomic"

	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/internal/log"
	"github.com/google/uuid"
)

const (
	pingInterval = 5 * time.Second
	postInterval = 1 * time.Second
)

// Identity is the process/role identity reported in every ping/post
// request.
type Identity struct {
	MachineName  string
	RoleName     string
	InstanceName string
}

// Aggregator is the process-wide live-metrics singleton: lock-free counter
// updates from mapper-side goroutines, plus one scheduled task running the
// ping/post control loop.
type Aggregator struct {
	ikey     uatomic.String
	counters atomic.Pointer[Counters]
	state    atomic.Int32 // livemetrics.State
	endpoint *endpointRef
	identity Identity
	streamID string
	client   *http.Client
	sampler  *resourceSampler

	pollInterval atomic.Int64 // nanoseconds; ping-phase poll cadence hint
}

// New constructs an Aggregator configured for a single tenant (iKey) and
// live-metrics endpoint.
func New(ikey, liveEndpoint string, identity Identity, client *http.Client) *Aggregator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	a := &Aggregator{
		endpoint: newEndpointRef(liveEndpoint),
		identity: identity,
		streamID: uuid.NewString(),
		client:   client,
		sampler:  newResourceSampler(),
	}
	a.ikey.Store(ikey)
	a.counters.Store(NewCounters())
	a.pollInterval.Store(int64(pingInterval))
	return a
}

// SetIKey swaps the tenant key the aggregator filters envelopes against.
// This is a last-writer-wins atomic swap and does not reset counters.
func (a *Aggregator) SetIKey(ikey string) { a.ikey.Store(ikey) }

func (a *Aggregator) State() State { return State(a.state.Load()) }

// Observe folds an envelope into the live counters if it belongs to this
// aggregator's tenant.
func (a *Aggregator) Observe(e *envelope.Envelope) {
	if e == nil || e.IKey != a.ikey.Load() {
		return
	}
	a.counters.Load().Add(e)
}

// GetAndRestart atomically swaps the current counters with a fresh zeroed
// instance and returns a decoded snapshot of the swapped-out one. This
// guarantees an envelope contributes to at most one snapshot: an Add that
// returned before the swap lands in the pre-swap snapshot; one that
// returns after lands in the next.
func (a *Aggregator) GetAndRestart() Snapshot {
	fresh := NewCounters()
	old := a.counters.Swap(fresh)
	return old.read()
}

// Run drives the ping/post control loop until ctx is cancelled. It is
// meant to run as the aggregator's single scheduled task.
func (a *Aggregator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		switch a.State() {
		case Streaming:
			a.runStreaming(ctx)
		default:
			a.runPinging(ctx)
		}
	}
}

func (a *Aggregator) runPinging(ctx context.Context) {
	interval := time.Duration(a.pollInterval.Load())
	if interval <= 0 {
		interval = pingInterval
	}
	t := time.NewTimer(interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	resp, cr, err := a.send(ctx, "ping")
	if err != nil {
		log.Warn("livemetrics: ping failed: %v", err)
		return
	}
	_ = resp
	a.applyControlResponse(cr)
}

func (a *Aggregator) runStreaming(ctx context.Context) {
	t := time.NewTicker(postInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if a.State() != Streaming {
			return
		}
		_, cr, err := a.send(ctx, "post")
		if err != nil {
			log.Warn("livemetrics: post failed: %v", err)
			a.state.Store(int32(PingPending))
			return
		}
		a.applyControlResponse(cr)
		if !cr.Subscribed {
			a.state.Store(int32(PingPending))
			return
		}
	}
}

func (a *Aggregator) applyControlResponse(cr controlResponse) {
	if cr.RedirectTo != "" {
		a.endpoint.Redirect(cr.RedirectTo)
	}
	if cr.PollingInterval > 0 {
		a.pollInterval.Store(int64(cr.PollingInterval))
	}
	if cr.Subscribed {
		a.state.Store(int32(Streaming))
	} else if a.State() == Disabled {
		a.state.Store(int32(PingPending))
	}
}
