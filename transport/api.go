package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
)

// Endpoint identifies a remote party: an address and a display name.
// Address has the form scheme://addr, where scheme selects the transport.
// A bare address means tcp.
type Endpoint struct {
	Address string
	Name    string
}

// Scheme returns the transport name of the endpoint address.
func (e Endpoint) Scheme() string {
	if i := strings.Index(e.Address, "://"); i >= 0 {
		return e.Address[:i]
	}
	return "tcp"
}

// Addr returns the endpoint address without its scheme.
func (e Endpoint) Addr() string {
	if i := strings.Index(e.Address, "://"); i >= 0 {
		return e.Address[i+3:]
	}
	return e.Address
}

func (e Endpoint) IsZero() bool {
	return e.Address == "" && e.Name == ""
}

func (e Endpoint) String() string {
	if e.Name == "" || e.Name == e.Address {
		return e.Address
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.Address)
}

// Stream is an ordered, reliable, bidirectional byte stream to one remote
// endpoint. Closing it unblocks pending reads and writes.
type Stream interface {
	io.ReadWriteCloser

	// Remote returns the endpoint on the other side of the stream.
	Remote() Endpoint
}

// Dialer opens a stream to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Stream, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, ep Endpoint) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context, ep Endpoint) (Stream, error) {
	return f(ctx, ep)
}

// A Listener is similar to a net.Listener but returns streams.
type Listener interface {
	// Close closes the listener.
	// Any blocked Accept operations will be unblocked and return errors.
	Close() error

	// Accept waits for and returns the next inbound stream.
	Accept() (Stream, error)

	// Addr returns the listener's network address if available.
	Addr() net.Addr
}
