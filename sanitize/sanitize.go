// Package sanitize enforces the string-length and key-uniqueness limits
// the wire schema places on user properties and measurements.
package sanitize

import (
	"sort"
	"strconv"
	"strings"
)

const (
	// MaxKeyLength is the maximum property/measurement key length after
	// trimming.
	MaxKeyLength = 150
	// MaxValueLength is the maximum property value length after trimming.
	MaxValueLength = 8192
)

// SanitizeProperties trims whitespace, truncates keys/values to the limits
// above, and deduplicates keys by appending a numeric suffix. Empty
// sanitized values are dropped entirely. The input is never mutated; a new
// map is always returned.
func SanitizeProperties(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	used := make(map[string]struct{}, len(in))
	for _, k := range sortedKeys(in) {
		v := strings.TrimSpace(in[k])
		if len(v) > MaxValueLength {
			v = v[:MaxValueLength]
		}
		if v == "" {
			continue
		}
		key := sanitizeKey(k, used)
		out[key] = v
		used[key] = struct{}{}
	}
	return out
}

// SanitizeMeasurements applies the same key rules as SanitizeProperties,
// but retains entries whose value is zero (measurements are numeric; an
// empty sanitized value has no meaning here, unlike properties).
func SanitizeMeasurements(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	used := make(map[string]struct{}, len(in))
	for _, k := range sortedFloatKeys(in) {
		key := sanitizeKey(k, used)
		out[key] = in[k]
		used[key] = struct{}{}
	}
	return out
}

func sanitizeKey(k string, used map[string]struct{}) string {
	key := strings.TrimSpace(k)
	if len(key) > MaxKeyLength {
		key = key[:MaxKeyLength]
	}
	if key == "" {
		key = "empty"
	}
	base := key
	for n := 1; ; n++ {
		if _, collide := used[key]; !collide {
			return key
		}
		key = withSuffix(base, n)
	}
}

// withSuffix appends a numeric disambiguator to base, truncating base
// itself if needed so the result still fits within MaxKeyLength.
func withSuffix(base string, n int) string {
	suffix := strconv.Itoa(n)
	if len(base)+len(suffix) > MaxKeyLength {
		base = base[:MaxKeyLength-len(suffix)]
	}
	return base + suffix
}

// sortedKeys returns in's keys in deterministic order so suffix bumping is
// reproducible across runs given the same input.
func sortedKeys(in map[string]string) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedFloatKeys(in map[string]float64) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
