package pipeline

import (
	"strconv"
	"strings"
)

const samplingKey = "ai_sampling"

// defaultSampleRate is used when a span carries no trace-state, or no
// recognized sampling key within it — every envelope still needs a
// sampleRate in (0, 100].
const defaultSampleRate = 100.0

// parseSampleRate extracts the "ai_sampling=<pct>" member from a W3C
// trace-state string (comma-separated "key=value" pairs). Unknown keys
// and malformed members are ignored.
func parseSampleRate(traceState string) float64 {
	if traceState == "" {
		return defaultSampleRate
	}
	for _, member := range strings.Split(traceState, ",") {
		member = strings.TrimSpace(member)
		key, value, ok := strings.Cut(member, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) != samplingKey {
			continue
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || pct <= 0 || pct > 100 {
			continue
		}
		return pct
	}
	return defaultSampleRate
}
