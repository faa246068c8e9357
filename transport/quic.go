package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const quicProto = "pairtalk-quic"

// QUIC streams are only announced to the remote once data is sent, so the
// dialing side writes this byte right after opening its stream.
const quicHello = 0x21

var quicConfig = &quic.Config{
	MaxIdleTimeout:  80 * time.Second,
	KeepAlivePeriod: 15 * time.Second,
}

type quicStream struct {
	conn   quic.Connection
	stream quic.Stream
	remote Endpoint
}

func (s *quicStream) Read(p []byte) (int, error) {
	return s.stream.Read(p)
}

func (s *quicStream) Write(p []byte) (int, error) {
	return s.stream.Write(p)
}

func (s *quicStream) Close() error {
	s.stream.CancelRead(0)
	err := s.stream.Close()
	return errors.Join(err, s.conn.CloseWithError(0, "closed"))
}

func (s *quicStream) Remote() Endpoint {
	return s.remote
}

// DialQUIC opens a stream on a new QUIC connection. The server certificate
// is not verified.
func DialQUIC(ctx context.Context, addr string) (Stream, error) {
	conn, err := quic.DialAddr(ctx, addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{quicProto},
	}, quicConfig)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, err.Error())
		return nil, err
	}
	if _, err := stream.Write([]byte{quicHello}); err != nil {
		conn.CloseWithError(0, err.Error())
		return nil, err
	}
	return &quicStream{
		conn:   conn,
		stream: stream,
		remote: Endpoint{Address: "quic://" + addr, Name: addr},
	}, nil
}

// QUICListener accepts QUIC connections and returns the first stream each
// one opens.
type QUICListener struct {
	l      *quic.Listener
	ctx    context.Context
	cancel context.CancelFunc
}

// ListenQUIC listens for QUIC connections at addr using a freshly generated
// self-signed certificate.
func ListenQUIC(addr string) (*QUICListener, error) {
	tlsConf, err := selfSignedTLS()
	if err != nil {
		return nil, err
	}
	l, err := quic.ListenAddr(addr, tlsConf, quicConfig)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QUICListener{l: l, ctx: ctx, cancel: cancel}, nil
}

func (l *QUICListener) Accept() (Stream, error) {
	conn, err := l.l.Accept(l.ctx)
	if err != nil {
		return nil, err
	}
	stream, err := conn.AcceptStream(l.ctx)
	if err != nil {
		conn.CloseWithError(0, err.Error())
		return nil, err
	}
	var hello [1]byte
	if _, err := io.ReadFull(stream, hello[:]); err != nil {
		conn.CloseWithError(0, err.Error())
		return nil, err
	}
	addr := conn.RemoteAddr().String()
	return &quicStream{
		conn:   conn,
		stream: stream,
		remote: Endpoint{Address: "quic://" + addr, Name: addr},
	}, nil
}

func (l *QUICListener) Close() error {
	l.cancel()
	return l.l.Close()
}

func (l *QUICListener) Addr() net.Addr {
	return l.l.Addr()
}

func selfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "pairtalk"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{quicProto},
	}, nil
}
