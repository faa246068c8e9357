package transport

import (
	"net"
)

// NetListener wraps a net.Listener to return streams.
type NetListener struct {
	net.Listener
	proto string
}

// Accept waits for and returns the next connected stream to the listener.
func (l *NetListener) Accept() (Stream, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return StreamFrom(conn, l.proto), nil
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
func (l *NetListener) Close() error {
	return l.Listener.Close()
}

func listenNet(proto, addr string) (*NetListener, error) {
	l, err := net.Listen(proto, addr)
	if err != nil {
		return nil, err
	}
	return &NetListener{Listener: l, proto: proto}, nil
}

// ListenTCP creates a TCP listener at the given address.
func ListenTCP(addr string) (*NetListener, error) {
	return listenNet("tcp", addr)
}

// ListenUnix creates a Unix domain socket listener at the given path.
func ListenUnix(path string) (*NetListener, error) {
	return listenNet("unix", path)
}
