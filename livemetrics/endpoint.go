package livemetrics

import "go.uber.org/atomic"

// endpointRef is a single atomic reference to the live-metrics base URL.
// Swaps are last-writer-wins and require no counter reset: a redirect can
// move the endpoint mid-stream without disturbing in-flight counter
// updates.
type endpointRef struct {
	url atomic.String
}

func newEndpointRef(initial string) *endpointRef {
	r := &endpointRef{}
	r.url.Store(initial)
	return r
}

func (r *endpointRef) Load() string { return r.url.Load() }

func (r *endpointRef) Redirect(to string) {
	if to != "" {
		r.url.Store(to)
	}
}
