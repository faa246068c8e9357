package transport

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// wsStream keeps its WebSocket handler alive until the stream is closed.
type wsStream struct {
	*netStream
	done chan struct{}
	once sync.Once
}

func (s *wsStream) Close() error {
	err := s.netStream.Close()
	s.once.Do(func() { close(s.done) })
	return err
}

// wsListener wraps a net.Listener and WebSocket server to return streams.
type wsListener struct {
	net.Listener
	accepted chan Stream
	closed   chan struct{}
	once     sync.Once
}

// Accept waits for and returns the next connected stream to the listener.
func (l *wsListener) Accept() (Stream, error) {
	select {
	case s := <-l.accepted:
		return s, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
func (l *wsListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return l.Listener.Close()
}

func (l *wsListener) handle(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	addr := ws.Request().RemoteAddr
	s := &wsStream{
		netStream: &netStream{Conn: ws, remote: Endpoint{Address: "ws://" + addr, Name: addr}},
		done:      make(chan struct{}),
	}
	select {
	case l.accepted <- s:
		<-s.done
	case <-l.closed:
	}
}

// ListenWS takes a TCP address and returns a Listener for a HTTP+WebSocket server listening on the given address.
func ListenWS(addr string) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	wsl := &wsListener{
		Listener: l,
		accepted: make(chan Stream),
		closed:   make(chan struct{}),
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: websocket.Handler(wsl.handle),
	}
	go srv.Serve(l)
	return wsl, nil
}
