package mapper

import (
	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/span"
)

// mapDependency builds the RemoteDependencyData envelope for the
// dependency path.
func (m *Mapper) mapDependency(s *span.Span, tags map[string]string) (envelope.Envelope, error) {
	tags = cloneTags(tags)

	shape := m.classifyDependency(s)
	props, ikeyOverride := collectProperties(s.Attributes, tags)
	if link, ok := linksProperty(s.Links); ok {
		props["_MS.links"] = link
	}

	data, err := buildDependencyData(s, shape, props)
	if err != nil {
		return envelope.Envelope{}, err
	}

	e := envelope.New(resolveIKey(m.cfg.IKey, ikeyOverride), formatSpanTime(s), 0, tags, data)
	return e, nil
}
