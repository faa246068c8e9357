// Package manager establishes pairtalk sessions and keeps at most one of
// them connected at a time.
//
// A Manager either dials a peer with ConnectTo or waits for one with
// ListenAndAcceptOnce. Both return an Attempt immediately and do the
// blocking work on a worker goroutine. Starting an attempt supersedes the
// one in flight and closes the current session.
package manager

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/progrium/pairtalk/session"
	"github.com/progrium/pairtalk/transport"
)

// Discovery is a peer scan that must be stopped before a session is
// established.
type Discovery interface {
	StopDiscovery() error
}

type Config struct {
	// Dialer opens outbound streams. Defaults to transport.DefaultDialer.
	Dialer transport.Dialer

	// Listen opens the listener used by ListenAndAcceptOnce on
	// ListenAddress. Defaults to transport.Listen.
	Listen        transport.ListenFunc
	ListenAddress string

	// Discovery is stopped before every attempt and on Close. May be nil.
	Discovery Discovery

	// Session configures every session the manager starts. Its Endpoint is
	// set per session.
	Session session.Config

	Logger logrus.FieldLogger
}

type Manager struct {
	cfg Config
	log logrus.FieldLogger

	mu      sync.Mutex
	current *session.Session
	attempt *Attempt

	workers conc.WaitGroup
}

func New(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = transport.DefaultDialer
	}
	if cfg.Listen == nil {
		cfg.Listen = transport.Listen
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = cfg.Logger
	}
	return &Manager{cfg: cfg, log: cfg.Logger}
}

// ConnectTo dials ep and starts a session on the resulting stream. It stops
// discovery, supersedes any pending attempt and closes the current session
// before dialing. The attempt fails with a *ConnectError if ep cannot be
// reached.
func (m *Manager) ConnectTo(ctx context.Context, ep transport.Endpoint) *Attempt {
	a := m.begin(ctx)
	close(a.released)
	log := m.log.WithField("endpoint", ep.String())
	m.workers.Go(func() {
		log.Info("connecting")
		stream, err := m.cfg.Dialer.Dial(a.ctx, ep)
		if err != nil {
			if cause := context.Cause(a.ctx); cause != nil {
				m.fail(a, cause)
				return
			}
			log.WithError(err).Warn("connect failed")
			m.fail(a, &ConnectError{Endpoint: ep, Err: err})
			return
		}
		m.install(a, stream, ep)
	})
	return a
}

// ListenAndAcceptOnce opens a listener, accepts exactly one stream and
// starts a session on it. The listener is closed as soon as the stream is
// accepted or the attempt ends, and before a later attempt starts, so the
// next attempt can listen on the same address. The attempt fails with an
// *AcceptError matching ErrListenFailed or ErrAcceptFailed; neither affects
// the manager.
func (m *Manager) ListenAndAcceptOnce(ctx context.Context) *Attempt {
	a := m.begin(ctx)
	m.workers.Go(func() {
		stream, err := m.acceptOnce(a)
		close(a.released)
		if err != nil {
			m.fail(a, err)
			return
		}
		m.install(a, stream, stream.Remote())
	})
	return a
}

// acceptOnce returns the first stream accepted on a fresh listener, which
// is closed by the time it returns.
func (m *Manager) acceptOnce(a *Attempt) (transport.Stream, error) {
	if cause := context.Cause(a.ctx); cause != nil {
		return nil, cause
	}
	l, err := m.cfg.Listen(m.cfg.ListenAddress)
	if err != nil {
		if cause := context.Cause(a.ctx); cause != nil {
			return nil, cause
		}
		m.log.WithError(err).Warn("listen failed")
		return nil, &AcceptError{Op: "listen", Err: err}
	}
	defer l.Close()
	stop := context.AfterFunc(a.ctx, func() {
		l.Close()
	})
	defer stop()
	m.log.WithField("addr", l.Addr()).Info("listening")

	stream, err := l.Accept()
	if err != nil {
		if cause := context.Cause(a.ctx); cause != nil {
			return nil, cause
		}
		m.log.WithError(err).Warn("accept failed")
		return nil, &AcceptError{Op: "accept", Err: err}
	}
	return stream, nil
}

// begin makes a the pending attempt after tearing down discovery, the
// previous attempt and the current session. It returns once the previous
// attempt has released its listener.
func (m *Manager) begin(ctx context.Context) *Attempt {
	a := newAttempt(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopDiscovery()
	m.cancelAttempt(ErrSuperseded)
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	m.attempt = a
	return a
}

// cancelAttempt ends the pending attempt with cause and waits for it to
// release its listener. The caller holds m.mu.
func (m *Manager) cancelAttempt(cause error) {
	if m.attempt == nil {
		return
	}
	m.attempt.cancel(cause)
	<-m.attempt.released
	m.attempt = nil
}

// install starts a session on stream unless a was superseded or cancelled
// while it was being established.
func (m *Manager) install(a *Attempt, stream transport.Stream, ep transport.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt != a || a.ctx.Err() != nil {
		if m.attempt == a {
			m.attempt = nil
		}
		stream.Close()
		cause := context.Cause(a.ctx)
		if cause == nil {
			cause = ErrSuperseded
		}
		a.finish(nil, cause)
		return
	}
	cfg := m.cfg.Session
	cfg.Endpoint = ep
	s := session.New(stream, cfg)
	m.current = s
	m.attempt = nil
	a.finish(s, nil)
}

// fail ends a with err, leaving the manager idle if a is still pending.
func (m *Manager) fail(a *Attempt, err error) {
	m.mu.Lock()
	if m.attempt == a {
		m.attempt = nil
	}
	m.mu.Unlock()
	a.finish(nil, err)
}

// Close stops discovery, cancels any pending attempt and closes the current
// session. It is safe to call more than once, and the manager may start new
// attempts afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopDiscovery()
	m.cancelAttempt(ErrClosed)
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	return nil
}

// Wait blocks until every connect and accept worker has returned.
func (m *Manager) Wait() {
	m.workers.Wait()
}

// Current returns the most recently established session, which may have
// since closed, or nil.
func (m *Manager) Current() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State reports StateConnecting while an attempt is pending, otherwise the
// state of the current session, or StateIdle if there is none.
func (m *Manager) State() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.attempt != nil:
		return session.StateConnecting
	case m.current != nil:
		return m.current.State()
	default:
		return session.StateIdle
	}
}

// IsConnectedTo reports whether the current session is connected to ep. The
// zero Endpoint matches any peer.
func (m *Manager) IsConnectedTo(ep transport.Endpoint) bool {
	s := m.Current()
	if s == nil || !s.IsConnected() {
		return false
	}
	return ep.IsZero() || s.Remote().Address == ep.Address
}

func (m *Manager) stopDiscovery() {
	if m.cfg.Discovery == nil {
		return
	}
	if err := m.cfg.Discovery.StopDiscovery(); err != nil {
		m.log.WithError(err).Debug("stopping discovery")
	}
}
