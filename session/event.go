package session

import (
	"fmt"
	"time"

	"github.com/progrium/pairtalk/transport"
)

// Direction tells whether file bytes are arriving or leaving.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Event is something a Session reports to its Sink.
type Event interface {
	// Source returns the ID of the session that emitted the event.
	Source() string
	String() string
}

// Meta is embedded in every event.
type Meta struct {
	SessionID string
	Time      time.Time
}

func (m Meta) Source() string { return m.SessionID }

// Connected is the first event of every session.
type Connected struct {
	Meta
	Endpoint transport.Endpoint
}

func (e Connected) String() string {
	return fmt.Sprintf("connected to %s", e.Endpoint)
}

// Disconnected is the last event of every session. Err is nil when the
// session was closed locally or the peer hung up between frames.
type Disconnected struct {
	Meta
	Err error
}

func (e Disconnected) String() string {
	if e.Err != nil {
		return fmt.Sprintf("disconnected: %v", e.Err)
	}
	return "disconnected"
}

type TextReceived struct {
	Meta
	Text string
}

func (e TextReceived) String() string {
	return fmt.Sprintf("received text: %s", e.Text)
}

type TextSent struct {
	Meta
	Text string
}

func (e TextSent) String() string {
	return fmt.Sprintf("sent text: %s", e.Text)
}

type FileProgress struct {
	Meta
	Direction  Direction
	Name       string
	BytesSoFar uint64
	TotalBytes uint64
}

func (e FileProgress) String() string {
	return fmt.Sprintf("%s file %s: %d/%d bytes", e.Direction, e.Name, e.BytesSoFar, e.TotalBytes)
}

// FileReceived is emitted once all declared bytes of a file are stored.
type FileReceived struct {
	Meta
	Name       string
	Path       string
	TotalBytes uint64
}

func (e FileReceived) String() string {
	return fmt.Sprintf("received file %s (%d bytes) at %s", e.Name, e.TotalBytes, e.Path)
}

type FileSent struct {
	Meta
	Name       string
	Path       string
	TotalBytes uint64
}

func (e FileSent) String() string {
	return fmt.Sprintf("sent file %s (%d bytes)", e.Name, e.TotalBytes)
}

// FileDiscarded is emitted when the Store refuses an inbound file. Its
// payload is skipped and the session stays connected.
type FileDiscarded struct {
	Meta
	Name       string
	TotalBytes uint64
	Err        error
}

func (e FileDiscarded) String() string {
	return fmt.Sprintf("discarded file %s (%d bytes): %v", e.Name, e.TotalBytes, e.Err)
}
