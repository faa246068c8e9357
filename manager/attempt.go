package manager

import (
	"context"

	"github.com/progrium/pairtalk/session"
)

// Attempt is a connect or accept running on a worker goroutine.
type Attempt struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	// released is closed once the worker holds no listener and will not
	// open one.
	released chan struct{}

	sess *session.Session
	err  error
}

func newAttempt(parent context.Context) *Attempt {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Attempt{
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
}

func (a *Attempt) finish(s *session.Session, err error) {
	a.sess = s
	a.err = err
	a.cancel(nil)
	close(a.done)
}

// Done returns a channel that is closed when the attempt has finished.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt has finished. It returns the established
// session, or the error the attempt failed with: a *ConnectError, an
// *AcceptError, ErrSuperseded, ErrClosed or the context's error.
func (a *Attempt) Wait() (*session.Session, error) {
	<-a.done
	return a.sess, a.err
}

// Cancel abandons the attempt. It has no effect once the attempt finished.
func (a *Attempt) Cancel() {
	a.cancel(context.Canceled)
}
