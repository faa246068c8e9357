package transport

import (
	"context"
	"io"
	"net"

	kcp "github.com/xtaci/kcp-go"
)

const (
	kcpDataShards   = 10
	kcpParityShards = 3

	// KCP has no connection handshake; the listener only learns about a
	// session from its first packet, so the dialing side sends this byte.
	kcpHello = 0x21
)

func tuneKCP(sess *kcp.UDPSession) {
	sess.SetStreamMode(true)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, 10, 2, 1)
	sess.SetWindowSize(256, 256)
}

// DialKCP opens a stream via a KCP session over UDP.
func DialKCP(ctx context.Context, addr string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := kcp.DialWithOptions(addr, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, err
	}
	tuneKCP(sess)
	if _, err := sess.Write([]byte{kcpHello}); err != nil {
		sess.Close()
		return nil, err
	}
	return &netStream{
		Conn:   sess,
		remote: Endpoint{Address: "kcp://" + addr, Name: addr},
	}, nil
}

// KCPListener accepts KCP sessions as streams.
type KCPListener struct {
	l *kcp.Listener
}

// ListenKCP creates a KCP listener at the given UDP address.
func ListenKCP(addr string) (*KCPListener, error) {
	l, err := kcp.ListenWithOptions(addr, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, err
	}
	return &KCPListener{l: l}, nil
}

func (l *KCPListener) Accept() (Stream, error) {
	sess, err := l.l.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tuneKCP(sess)
	var hello [1]byte
	if _, err := io.ReadFull(sess, hello[:]); err != nil {
		sess.Close()
		return nil, err
	}
	return StreamFrom(sess, "kcp"), nil
}

func (l *KCPListener) Close() error {
	return l.l.Close()
}

func (l *KCPListener) Addr() net.Addr {
	return l.l.Addr()
}
