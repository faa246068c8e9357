package transport

import (
	"net"
)

type netStream struct {
	net.Conn
	remote Endpoint
}

func (s *netStream) Remote() Endpoint {
	return s.remote
}

// StreamFrom wraps a net.Conn as a Stream whose remote endpoint is the
// connection's remote address under the given scheme.
func StreamFrom(conn net.Conn, scheme string) Stream {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &netStream{
		Conn:   conn,
		remote: Endpoint{Address: scheme + "://" + addr, Name: addr},
	}
}

type namedStream struct {
	Stream
	remote Endpoint
}

func (s *namedStream) Remote() Endpoint {
	return s.remote
}

// withEndpoint makes s report ep as its remote endpoint.
func withEndpoint(s Stream, ep Endpoint) Stream {
	if ns, ok := s.(*netStream); ok {
		ns.remote = ep
		return ns
	}
	return &namedStream{Stream: s, remote: ep}
}
