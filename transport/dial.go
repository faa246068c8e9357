package transport

import (
	"context"
	"fmt"
)

// A DialFunc connects to addr and returns a Stream
type DialFunc func(ctx context.Context, addr string) (Stream, error)

// A ListenFunc starts listening on addr
type ListenFunc func(addr string) (Listener, error)

// Dialers is map of transport schemes to DialFuncs
// and includes all builtin transports
var Dialers map[string]DialFunc

// Listeners is map of transport schemes to ListenFuncs
// and includes all builtin transports
var Listeners map[string]ListenFunc

func init() {
	Dialers = map[string]DialFunc{
		"tcp":  DialTCP,
		"unix": DialUnix,
		"ws":   DialWS,
		"quic": DialQUIC,
		"kcp":  DialKCP,
		"stdio": func(_ context.Context, _ string) (Stream, error) {
			return DialStdio()
		},
	}
	Listeners = map[string]ListenFunc{
		"tcp": func(addr string) (Listener, error) {
			return ListenTCP(addr)
		},
		"unix": func(addr string) (Listener, error) {
			return ListenUnix(addr)
		},
		"ws": ListenWS,
		"quic": func(addr string) (Listener, error) {
			return ListenQUIC(addr)
		},
		"kcp": func(addr string) (Listener, error) {
			return ListenKCP(addr)
		},
		"stdio": func(_ string) (Listener, error) {
			return ListenStdio()
		},
	}
}

// Dial opens a stream to ep using the transport registered for its scheme.
// The returned stream reports ep as its remote endpoint.
func Dial(ctx context.Context, ep Endpoint) (Stream, error) {
	d, ok := Dialers[ep.Scheme()]
	if !ok {
		return nil, fmt.Errorf("transport '%s' not in available in Dialers", ep.Scheme())
	}
	s, err := d(ctx, ep.Addr())
	if err != nil {
		return nil, err
	}
	return withEndpoint(s, ep), nil
}

// Listen starts a listener for an address of the form scheme://addr
// using the transport registered for its scheme.
func Listen(address string) (Listener, error) {
	ep := Endpoint{Address: address}
	l, ok := Listeners[ep.Scheme()]
	if !ok {
		return nil, fmt.Errorf("transport '%s' not in available in Listeners", ep.Scheme())
	}
	return l(ep.Addr())
}

// DefaultDialer dials through the Dialers registry.
var DefaultDialer Dialer = DialerFunc(Dial)
