package mapper

import (
	"fmt"
	"strings"

	"github.com/appinsights-go/agent/correlation"
	"github.com/appinsights-go/agent/span"
)

// reservedPrefixes are attribute-key prefixes consumed by a specific
// dependency/request field deriver; they are never copied into the
// generic properties map.
var reservedPrefixes = []string{
	"http", "db", "message", "messaging", "rpc", "enduser", "net", "peer",
	"exception", "thread", "faas",
}

const internalPrefix = "applicationinsights.internal."

// collectProperties copies every attribute not claimed by a reserved
// prefix, the internal-log prefix, or a special-mapped key into a plain
// properties map. Array values are already joined with ", " by
// span.Attribute.String(). Special-mapped keys are applied to tags (and,
// for ai.preview.*, to iKey) as a side effect via the supplied tags map.
func collectProperties(attrs span.Attributes, tags map[string]string) (map[string]string, string) {
	props := make(map[string]string)
	var ikeyOverride string
	for k, v := range attrs {
		switch {
		case k == "enduser.id":
			tags[correlation.TagUserID] = v.String()
			continue
		case k == "http.user_agent":
			tags[correlation.TagUserAgent] = v.String()
			continue
		case strings.HasPrefix(k, "ai.preview."):
			applyPreviewAttribute(k, v.String(), tags, &ikeyOverride)
			continue
		}
		if hasReservedPrefix(k) || strings.HasPrefix(k, internalPrefix) {
			continue
		}
		props[k] = v.String()
	}
	return props, ikeyOverride
}

func hasReservedPrefix(key string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// applyPreviewAttribute maps the legacy "ai.preview.*" bridge attributes
// onto tags, or, for "ai.preview.instrumentation_key", onto the envelope's
// iKey override.
func applyPreviewAttribute(key, value string, tags map[string]string, ikeyOverride *string) {
	switch key {
	case "ai.preview.instrumentation_key":
		*ikeyOverride = value
	case "ai.preview.service_name":
		tags[correlation.TagCloudRole] = value
	case "ai.preview.service_instance_id":
		tags[correlation.TagCloudRoleInstance] = value
	default:
		// Unknown legacy preview attributes are tolerated and dropped:
		// the bridge set them, but this pipeline has no tag to carry them.
	}
}

// linksProperty renders span.Links as the exact "_MS.links" JSON-array
// string the wire schema expects: no whitespace, field order
// operation_Id then id.
func linksProperty(links []span.Link) (string, bool) {
	if len(links) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, l := range links {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"operation_Id":%q,"id":%q}`, l.TraceID, l.SpanID)
	}
	b.WriteByte(']')
	return b.String(), true
}
