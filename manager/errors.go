package manager

import (
	"errors"
	"fmt"

	"github.com/progrium/pairtalk/transport"
)

var (
	// ErrTransportUnavailable is matched by a ConnectError.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrListenFailed is matched by an AcceptError from opening the listener.
	ErrListenFailed = errors.New("listen failed")

	// ErrAcceptFailed is matched by an AcceptError from accepting a stream.
	// The manager is unaffected and a new attempt may be started.
	ErrAcceptFailed = errors.New("accept failed")

	// ErrSuperseded is returned by an attempt replaced by a newer one.
	ErrSuperseded = errors.New("superseded by a newer attempt")

	// ErrClosed is returned by an attempt cancelled by Manager.Close.
	ErrClosed = errors.New("manager closed")
)

// ConnectError is returned when a stream to Endpoint could not be opened.
type ConnectError struct {
	Endpoint transport.Endpoint
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	return target == ErrTransportUnavailable
}

// AcceptError is returned when no inbound stream could be obtained. Op is
// "listen" or "accept".
type AcceptError struct {
	Op  string
	Err error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AcceptError) Unwrap() error {
	return e.Err
}

func (e *AcceptError) Is(target error) bool {
	switch e.Op {
	case "listen":
		return target == ErrListenFailed
	default:
		return target == ErrAcceptFailed
	}
}
