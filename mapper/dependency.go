package mapper

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/appinsights-go/agent/envelope"
	"github.com/appinsights-go/agent/span"
)

// sqlSystems is the SQL-set from the dependency subtyping table.
var sqlSystems = map[string]bool{
	"db2": true, "derby": true, "mariadb": true, "mssql": true, "mysql": true,
	"oracle": true, "postgresql": true, "sqlite": true, "other_sql": true,
	"hsqldb": true, "h2": true,
}

// defaultPorts omits a dependency target's port when it matches the
// system's well-known default.
var defaultPorts = map[string]int{
	"mongodb": 27017, "cassandra": 9042, "redis": 6379,
	"mariadb": 3306, "mysql": 3306, "mssql": 1433, "db2": 50000,
	"oracle": 1521, "h2": 8082, "derby": 1527, "postgresql": 5432,
}

type depShape struct {
	depType string
	target  string
	name    string // overrides span name when non-empty (e.g. db.statement)
	data    string // raw command/URL for RemoteDependencyData.Data
}

// classifyDependency applies the dependency subtyping precedence table;
// first match wins.
func (m *Mapper) classifyDependency(s *span.Span) depShape {
	if method, ok := s.AttrString("http.method"); ok {
		return m.httpDependency(s, method)
	}
	if sys, ok := s.AttrString("rpc.system"); ok {
		target := peerTarget(s)
		if target == "" {
			target = sys
		}
		return depShape{depType: sys, target: target}
	}
	if dbSystem, ok := s.AttrString("db.system"); ok {
		return dbDependency(s, dbSystem)
	}
	if msgSystem, ok := s.AttrString("messaging.system"); ok {
		return messagingDependency(s, msgSystem)
	}
	switch s.Name {
	case "EventHubs.send", "EventHubs.message":
		return depShape{depType: "Microsoft.EventHub", target: eventBusTarget(s)}
	case "ServiceBus.message", "ServiceBus.process":
		return depShape{depType: "AZURE SERVICE BUS", target: eventBusTarget(s)}
	}
	if s.Kind == span.KindInternal {
		return depShape{depType: "InProc"}
	}
	if target := peerTarget(s); target != "" {
		return depShape{target: target}
	}
	// No target derivable from peer attrs: mark InProc to avoid polluting
	// the service map with an unresolved external node.
	return depShape{depType: "InProc"}
}

func (m *Mapper) httpDependency(s *span.Span, method string) depShape {
	depType := "Http"
	if appID, ok := s.AttrString("ai.span.target.app_id"); ok && appID != m.cfg.SelfAppID {
		depType = "Http (tracked component)"
	}

	target := ""
	scheme := "http"
	if host, ok := s.AttrString("net.peer.name"); ok {
		target = host
		if port, ok := s.Attr("net.peer.port"); ok && port.Kind == span.AttrInt {
			if u, ok := s.AttrString("http.url"); ok {
				if parsed, err := url.Parse(u); err == nil && parsed.Scheme != "" {
					scheme = parsed.Scheme
				}
			}
			if !omitPort(scheme, int(port.Int)) {
				target = fmt.Sprintf("%s:%d", host, port.Int)
			}
		}
	} else if host, ok := s.AttrString("http.host"); ok {
		target = host
	} else if rawURL, ok := s.AttrString("http.url"); ok {
		target = targetFromURL(rawURL)
	}

	name := ""
	if rawURL, ok := s.AttrString("http.url"); ok {
		if u, err := url.Parse(rawURL); err == nil {
			name = fmt.Sprintf("%s %s", method, u.Path)
		}
	}
	if name == "" {
		name = method
	}

	data, _ := s.AttrString("http.url")
	return depShape{depType: depType, target: target, name: name, data: data}
}

// targetFromURL parses a bare http.url into host[:port], omitting the
// scheme's default port.
func targetFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		return host
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host + ":" + portStr
	}
	if omitPort(u.Scheme, port) {
		return host
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// omitPort reports whether a peer port should be dropped from a dependency
// target: default HTTP/HTTPS ports, or the sentinel -1.
func omitPort(scheme string, port int) bool {
	if port == -1 {
		return true
	}
	switch scheme {
	case "http":
		return port == 80
	case "https":
		return port == 443
	default:
		return false
	}
}

func dbDependency(s *span.Span, dbSystem string) depShape {
	depType := dbSystem
	name := ""
	if stmt, ok := s.AttrString("db.statement"); ok {
		name = stmt
	}
	target := peerTargetWithDefaultPort(s, dbSystem)
	if dbName, ok := s.AttrString("db.name"); ok {
		if target != "" {
			target = target + "/" + dbName
		} else {
			target = dbName
		}
	}
	if sqlSystems[dbSystem] {
		depType = "SQL"
	}
	return depShape{depType: depType, target: target, name: name, data: name}
}

func messagingDependency(s *span.Span, msgSystem string) depShape {
	depType := msgSystem
	if s.Kind == span.KindProducer {
		depType = "Queue Message | " + msgSystem
	}
	target := msgSystem
	if dest, ok := s.AttrString("messaging.destination"); ok {
		target = dest
	}
	return depShape{depType: depType, target: target}
}

func eventBusTarget(s *span.Span) string {
	peer, _ := s.AttrString("peer.address")
	dest, _ := s.AttrString("message_bus.destination")
	if peer == "" {
		return dest
	}
	if dest == "" {
		return peer
	}
	return peer + "/" + dest
}

// peerTarget derives a bare host[:port] target from net.peer.* attributes
// with no system-specific default port applied.
func peerTarget(s *span.Span) string {
	return peerTargetWithDefaultPort(s, "")
}

// peerTargetWithDefaultPort derives host[:port] from net.peer.name and
// net.peer.port, omitting the port when it equals system's documented
// default (looked up from defaultPorts). HTTP default ports are not
// omitted here.
func peerTargetWithDefaultPort(s *span.Span, system string) string {
	host, ok := s.AttrString("net.peer.name")
	if !ok {
		return ""
	}
	portAttr, ok := s.Attr("net.peer.port")
	if !ok || portAttr.Kind != span.AttrInt {
		return host
	}
	port := int(portAttr.Int)
	if def, ok := defaultPorts[system]; ok && port == def {
		return host
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// buildDependencyData assembles the RemoteDependencyData body for shape.
func buildDependencyData(s *span.Span, shape depShape, props map[string]string) (*envelope.RemoteDependencyData, error) {
	name := shape.name
	if name == "" {
		name = s.Name
	}
	duration, err := formatSpanDuration(s)
	if err != nil {
		return nil, err
	}
	resultCode := ""
	if code, ok := s.AttrString("http.status_code"); ok {
		resultCode = code
	}
	return &envelope.RemoteDependencyData{
		Name:       name,
		Data:       shape.data,
		Target:     shape.target,
		Type:       shape.depType,
		Duration:   duration,
		Success:    isSuccess(s),
		ResultCode: resultCode,
		Properties: sanitizedProps(props),
	}, nil
}
