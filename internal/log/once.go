package log

import "sync"

// KeyedOnce rate-limits a log line to once per distinct key, for policies
// like "drop batch; log once per status code".
type KeyedOnce struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKeyedOnce returns a ready-to-use KeyedOnce.
func NewKeyedOnce() *KeyedOnce {
	return &KeyedOnce{seen: make(map[string]struct{})}
}

// Do runs fn only the first time it is called for a given key.
func (k *KeyedOnce) Do(key string, fn func()) {
	k.mu.Lock()
	_, seen := k.seen[key]
	if !seen {
		k.seen[key] = struct{}{}
	}
	k.mu.Unlock()
	if !seen {
		fn()
	}
}
