package transport

import (
	"context"
	"net"
)

func dialNet(ctx context.Context, proto, addr string) (Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, proto, addr)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return &netStream{
		Conn:   conn,
		remote: Endpoint{Address: proto + "://" + addr, Name: addr},
	}, nil
}

// DialTCP opens a stream via TCP connection.
func DialTCP(ctx context.Context, addr string) (Stream, error) {
	return dialNet(ctx, "tcp", addr)
}

// DialUnix opens a stream via Unix domain socket.
func DialUnix(ctx context.Context, path string) (Stream, error) {
	return dialNet(ctx, "unix", path)
}
