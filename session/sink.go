package session

import "sync"

// Sink receives session events. Each session calls Emit from a single
// goroutine of its own, in order. Emit may call back into the session, but
// not Session.Wait, and a slow Sink delays later events of that session.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Tee emits every event to each of its sinks in order.
type Tee []Sink

func (t Tee) Emit(e Event) {
	for _, s := range t {
		if s != nil {
			s.Emit(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(Event) {}

// Queue is a Sink that never blocks the emitter. Events are buffered without
// bound and delivered in order on the Events channel.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []Event
	closed bool
	out    chan Event
}

func NewQueue() *Queue {
	q := &Queue{out: make(chan Event)}
	q.cond = sync.NewCond(&q.mu)
	go q.pump()
	return q
}

// Emit appends e to the queue. Events emitted after Close are dropped.
func (q *Queue) Emit(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.buf = append(q.buf, e)
	q.cond.Signal()
}

// Events returns the channel events are delivered on. It is closed after
// Close once every queued event has been received.
func (q *Queue) Events() <-chan Event {
	return q.out
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Signal()
}

func (q *Queue) pump() {
	for {
		q.mu.Lock()
		for len(q.buf) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.buf) == 0 {
			q.mu.Unlock()
			close(q.out)
			return
		}
		e := q.buf[0]
		q.buf[0] = nil
		q.buf = q.buf[1:]
		q.mu.Unlock()
		q.out <- e
	}
}
