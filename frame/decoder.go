package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
)

// Decoder reads frames from an io.Reader.
type Decoder struct {
	r       io.Reader
	pending *payload
	sync.Mutex
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode blocks until the next frame header is read. It returns io.EOF when
// the stream ends cleanly between frames, an error matching ErrTruncated when
// it ends inside one, and an *UnknownKindError for an unrecognized tag.
func (dec *Decoder) Decode() (Frame, error) {
	dec.Lock()
	defer dec.Unlock()

	if dec.pending != nil {
		p := dec.pending
		dec.pending = nil
		if _, err := io.Copy(io.Discard, p); err != nil {
			return nil, err
		}
	}

	var tag [4]byte
	n, err := io.ReadFull(dec.r, tag[:])
	if err != nil {
		switch {
		case n == 0 && isHangup(err):
			return nil, io.EOF
		case n > 0 && (err == io.ErrUnexpectedEOF || isHangup(err)):
			return nil, truncated("kind", err)
		}
		return nil, err
	}

	var f Frame
	switch kind := Kind(binary.BigEndian.Uint32(tag[:])); kind {
	case KindText:
		s, err := dec.readString("text")
		if err != nil {
			return nil, err
		}
		f = Text{Text: s}
	case KindFile:
		name, err := dec.readString("file name")
		if err != nil {
			return nil, err
		}
		var b [8]byte
		if err := dec.readFull("file length", b[:]); err != nil {
			return nil, err
		}
		length := binary.BigEndian.Uint64(b[:])
		p := &payload{r: dec.r, remaining: length}
		if length > 0 {
			dec.pending = p
		}
		f = File{Name: name, Length: length, Payload: p}
	default:
		return nil, &UnknownKindError{Kind: kind}
	}

	if Debug != nil {
		fmt.Fprintln(Debug, ">>DEC", f)
	}

	return f, nil
}

func (dec *Decoder) readString(what string) (string, error) {
	var b [2]byte
	if err := dec.readFull(what+" length", b[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.BigEndian.Uint16(b[:]))
	if err := dec.readFull(what, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (dec *Decoder) readFull(what string, buf []byte) error {
	_, err := io.ReadFull(dec.r, buf)
	if err == io.ErrUnexpectedEOF || isHangup(err) {
		return truncated(what, err)
	}
	return err
}

// payload reads the body of a file frame straight off the stream.
type payload struct {
	r         io.Reader
	remaining uint64
}

func (p *payload) Read(b []byte) (int, error) {
	if p.remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(b)) > p.remaining {
		b = b[:p.remaining]
	}
	n, err := p.r.Read(b)
	p.remaining -= uint64(n)
	switch {
	case p.remaining > 0 && err == io.EOF:
		return n, truncated("file payload", io.ErrUnexpectedEOF)
	case p.remaining > 0 && isHangup(err):
		return n, truncated("file payload", err)
	case err == io.EOF:
		err = nil
	}
	return n, err
}

// isHangup reports whether err means the peer went away: a clean EOF or a
// reset connection.
func isHangup(err error) bool {
	if err == io.EOF {
		return true
	}
	var syscallErr *os.SyscallError
	return errors.As(err, &syscallErr) && syscallErr.Err == syscall.ECONNRESET
}
