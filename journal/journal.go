// Package journal records session events to a stream so a conversation can
// be reviewed after the fact.
package journal

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/progrium/pairtalk/codec"
	"github.com/progrium/pairtalk/session"
)

// Record is the serialized form of a session event.
type Record struct {
	Type       string    `json:"type" cbor:"type"`
	Session    string    `json:"session" cbor:"session"`
	Time       time.Time `json:"time" cbor:"time"`
	Endpoint   string    `json:"endpoint,omitempty" cbor:"endpoint,omitempty"`
	Text       string    `json:"text,omitempty" cbor:"text,omitempty"`
	Name       string    `json:"name,omitempty" cbor:"name,omitempty"`
	Path       string    `json:"path,omitempty" cbor:"path,omitempty"`
	Direction  string    `json:"direction,omitempty" cbor:"direction,omitempty"`
	BytesSoFar uint64    `json:"bytes_so_far,omitempty" cbor:"bytes_so_far,omitempty"`
	TotalBytes uint64    `json:"total_bytes,omitempty" cbor:"total_bytes,omitempty"`
	Error      string    `json:"error,omitempty" cbor:"error,omitempty"`
}

// RecordOf converts an event to its record.
func RecordOf(e session.Event) Record {
	r := Record{Session: e.Source()}
	switch e := e.(type) {
	case session.Connected:
		r.Type, r.Time = "connected", e.Time
		r.Endpoint = e.Endpoint.String()
	case session.Disconnected:
		r.Type, r.Time = "disconnected", e.Time
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
	case session.TextReceived:
		r.Type, r.Time = "text_received", e.Time
		r.Text = e.Text
	case session.TextSent:
		r.Type, r.Time = "text_sent", e.Time
		r.Text = e.Text
	case session.FileProgress:
		r.Type, r.Time = "file_progress", e.Time
		r.Name, r.Direction = e.Name, e.Direction.String()
		r.BytesSoFar, r.TotalBytes = e.BytesSoFar, e.TotalBytes
	case session.FileReceived:
		r.Type, r.Time = "file_received", e.Time
		r.Name, r.Path, r.TotalBytes = e.Name, e.Path, e.TotalBytes
	case session.FileSent:
		r.Type, r.Time = "file_sent", e.Time
		r.Name, r.Path, r.TotalBytes = e.Name, e.Path, e.TotalBytes
	case session.FileDiscarded:
		r.Type, r.Time = "file_discarded", e.Time
		r.Name, r.TotalBytes = e.Name, e.TotalBytes
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
	default:
		r.Type, r.Time = "unknown", time.Now()
		r.Text = e.String()
	}
	return r
}

// Sink is a session.Sink writing a Record per event. Progress events are
// skipped unless Progress is set.
type Sink struct {
	Progress bool

	mu  sync.Mutex
	enc codec.Encoder
	c   io.Closer
	log logrus.FieldLogger
}

var _ session.Sink = (*Sink)(nil)

// NewSink returns a Sink encoding records to w with c.
func NewSink(w io.Writer, c codec.Codec, log logrus.FieldLogger) *Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Sink{enc: c.Encoder(w), log: log}
	if wc, ok := w.(io.Closer); ok {
		s.c = wc
	}
	return s
}

// Open appends records to the file at path in the named format.
func Open(path, format string, log logrus.FieldLogger) (*Sink, error) {
	c, err := codec.ByName(format)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewSink(f, c, log), nil
}

// Emit writes the record of e. Write errors are logged, not returned, since
// the emitting session has no use for them.
func (s *Sink) Emit(e session.Event) {
	if _, ok := e.(session.FileProgress); ok && !s.Progress {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return
	}
	if err := s.enc.Encode(RecordOf(e)); err != nil {
		s.log.WithError(err).Warn("writing journal")
	}
}

// Close stops the sink and closes the underlying writer if it has a Close
// method. Later events are dropped.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enc = nil
	if s.c == nil {
		return nil
	}
	c := s.c
	s.c = nil
	return c.Close()
}

// Read decodes every record from r in the named format.
func Read(r io.Reader, format string) ([]Record, error) {
	c, err := codec.ByName(format)
	if err != nil {
		return nil, err
	}
	dec := c.Decoder(r)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
