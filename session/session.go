// Package session runs one pairtalk conversation over a transport stream.
//
// A Session owns its stream. It decodes frames on a receive loop for as long
// as it lives and reports them, along with lifecycle changes, to a Sink.
// Sends run on worker goroutines and at most one may be in flight. Any I/O
// error closes the session; there is no recovery or reconnect.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/progrium/pairtalk/frame"
	"github.com/progrium/pairtalk/transport"
)

// DefaultProgressStep is the default number of file bytes between
// FileProgress events.
const DefaultProgressStep = 64 * 1024

type Config struct {
	// Sink receives the session's events. Nil discards them.
	Sink Sink

	// Store receives inbound files. Nil discards them.
	Store Store

	// Endpoint is reported in the Connected event. The zero value means the
	// stream's remote endpoint.
	Endpoint transport.Endpoint

	Logger logrus.FieldLogger

	// ChunkSize bounds each read and write of file payloads.
	ChunkSize int

	// ProgressStep is the number of file bytes between FileProgress events.
	ProgressStep uint64
}

type Session struct {
	id     string
	remote transport.Endpoint
	stream transport.Stream
	sink   Sink
	store  Store
	log    logrus.FieldLogger
	chunk  int
	step   uint64

	enc *frame.Encoder
	dec *frame.Decoder

	state   atomic.Int32
	sending atomic.Bool

	// lifeMu is held for reading while a send worker is started and for
	// writing while the session moves to Closed, so no worker starts after.
	lifeMu    sync.RWMutex
	workers   conc.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
	err       error

	// events buffers emitted events for deliver, which alone calls the
	// Sink. Nothing is queued after Disconnected.
	emitMu       sync.Mutex
	disconnected bool
	events       *Queue
	delivered    chan struct{}
}

// New binds a Session to stream, emits Connected and starts the receive
// loop. The Session owns stream from then on.
func New(stream transport.Stream, cfg Config) *Session {
	s := &Session{
		id:     xid.New().String(),
		remote: cfg.Endpoint,
		stream: stream,
		sink:   cfg.Sink,
		store:  cfg.Store,
		log:    cfg.Logger,
		chunk:  cfg.ChunkSize,
		step:   cfg.ProgressStep,
		done:   make(chan struct{}),

		events:    NewQueue(),
		delivered: make(chan struct{}),
	}
	if s.remote.IsZero() {
		s.remote = stream.Remote()
	}
	if s.sink == nil {
		s.sink = discardSink{}
	}
	if s.store == nil {
		s.store = discardStore{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.chunk <= 0 {
		s.chunk = frame.DefaultChunkSize
	}
	if s.step == 0 {
		s.step = DefaultProgressStep
	}
	s.log = s.log.WithFields(logrus.Fields{
		"session": s.id,
		"remote":  s.remote.Address,
	})
	s.enc = frame.NewEncoderSize(stream, s.chunk)
	s.dec = frame.NewDecoder(stream)

	s.state.Store(int32(StateConnected))
	s.log.Info("session connected")
	s.emit(Connected{Meta: s.meta(), Endpoint: s.remote})
	go s.deliver()
	s.workers.Go(s.loop)
	return s
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.id
}

// Remote returns the endpoint the session is bound to.
func (s *Session) Remote() transport.Endpoint {
	return s.remote
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// Close closes the stream, which ends the receive loop and fails any send
// in flight. Disconnected is emitted on the first call only. Close is safe
// to call more than once and always returns nil.
func (s *Session) Close() error {
	s.shutdown(nil)
	return nil
}

// Done returns a channel that is closed once the session is Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that closed the session, or nil if it is still
// connected, was closed locally, or the peer hung up cleanly.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the session is closed, its receive loop and send
// workers have returned and Disconnected has been delivered to the Sink. It
// returns the error that closed the session. Wait must not be called from
// the Sink.
func (s *Session) Wait() error {
	<-s.done
	s.workers.Wait()
	<-s.delivered
	return s.err
}

func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.lifeMu.Lock()
		s.state.Store(int32(StateClosed))
		s.err = cause
		s.lifeMu.Unlock()

		if err := s.stream.Close(); err != nil {
			s.log.WithError(err).Debug("closing stream")
		}
		if cause != nil {
			s.log.WithError(cause).Warn("session closed")
		} else {
			s.log.Info("session closed")
		}
		s.emit(Disconnected{Meta: s.meta(), Err: cause})
		close(s.done)
	})
}

// emit queues e for the Sink unless Disconnected has already been queued.
func (s *Session) emit(e Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.disconnected {
		return
	}
	s.events.Emit(e)
	if _, ok := e.(Disconnected); ok {
		s.disconnected = true
		s.events.Close()
	}
}

// deliver hands queued events to the Sink in order. The Sink may call back
// into the session, including Close and sends.
func (s *Session) deliver() {
	defer close(s.delivered)
	for e := range s.events.Events() {
		s.sink.Emit(e)
	}
}

func (s *Session) meta() Meta {
	return Meta{SessionID: s.id, Time: time.Now()}
}

// progress counts file bytes and reports every step bytes and at the end.
type progress struct {
	step, total uint64
	done, last  uint64
	report      func(done uint64)
}

func (p *progress) add(n int) {
	p.done += uint64(n)
	if p.done-p.last >= p.step || p.done == p.total {
		p.last = p.done
		p.report(p.done)
	}
}
