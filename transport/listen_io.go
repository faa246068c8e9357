package transport

import (
	"io"
	"net"
	"os"
	"sync"
)

// ioListener hands out a single wrapped stream.
type ioListener struct {
	mu     sync.Mutex
	stream Stream
	closed chan struct{}
	once   sync.Once
}

// Accept returns the wrapped stream the first time it is called. Later
// calls block until the listener is closed.
func (l *ioListener) Accept() (Stream, error) {
	l.mu.Lock()
	s := l.stream
	l.stream = nil
	l.mu.Unlock()
	if s != nil {
		return s, nil
	}
	<-l.closed
	return nil, net.ErrClosed
}

// Close closes the listener, and the wrapped stream if it was never accepted.
func (l *ioListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	l.mu.Lock()
	s := l.stream
	l.stream = nil
	l.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	return nil
}

func (l *ioListener) Addr() net.Addr {
	return nil
}

// ListenIO returns a Listener whose one inbound stream writes to out and
// reads from in.
func ListenIO(out io.WriteCloser, in io.ReadCloser) (Listener, error) {
	s, _ := DialIO(out, in)
	return &ioListener{stream: s, closed: make(chan struct{})}, nil
}

// ListenStdio is a convenience for calling ListenIO with Stdout and Stdin.
func ListenStdio() (Listener, error) {
	return &ioListener{
		stream: &ioduplex{os.Stdout, os.Stdin, stdioEndpoint},
		closed: make(chan struct{}),
	}, nil
}
