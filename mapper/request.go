package mapper

import (
	"strings"

	"github.com/appinsights-go/agent/correlation"
	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/span"
)

// mapRequest builds the RequestData envelope for the request path.
func (m *Mapper) mapRequest(s *span.Span, tags map[string]string) (envelope.Envelope, error) {
	tags = cloneTags(tags)

	method, hasMethod := s.AttrString("http.method")
	name := s.Name
	if hasMethod && strings.HasPrefix(s.Name, "/") {
		name = method + " " + s.Name
	}

	responseCode := "200"
	if code, ok := s.AttrString("http.status_code"); ok {
		responseCode = code
	}

	if ip, ok := s.AttrString("http.client_ip"); ok {
		tags[correlation.TagLocationIP] = ip
	} else if ip, ok := s.AttrString("net.peer.ip"); ok {
		tags[correlation.TagLocationIP] = ip
	}

	props, ikeyOverride := collectProperties(s.Attributes, tags)
	if link, ok := linksProperty(s.Links); ok {
		props["_MS.links"] = link
	}

	duration, err := formatSpanDuration(s)
	if err != nil {
		return envelope.Envelope{}, err
	}

	data := &envelope.RequestData{
		Name:         name,
		URL:          attrOrEmpty(s, "http.url"),
		Duration:     duration,
		ResponseCode: responseCode,
		Success:      isSuccess(s),
		Source:       requestSource(s, m.cfg.SelfAppID),
		Properties:   sanitizedProps(props),
	}

	e := envelope.New(resolveIKey(m.cfg.IKey, ikeyOverride), formatSpanTime(s), 0, tags, data)
	return e, nil
}

// requestSource resolves the request envelope's "source" field resolution order.
func requestSource(s *span.Span, selfAppID string) string {
	if appID, ok := s.AttrString("ai.span.source.app_id"); ok && appID != selfAppID {
		return appID
	}
	if msgSystem, ok := s.AttrString("messaging.system"); ok {
		if dest, ok := s.AttrString("messaging.destination"); ok {
			return msgSystem + "/" + dest
		}
		return msgSystem
	}
	if src, ok := s.AttrString("ai.span.source"); ok {
		return src
	}
	return ""
}

func attrOrEmpty(s *span.Span, key string) string {
	v, _ := s.AttrString(key)
	return v
}
