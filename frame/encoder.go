package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
)

// Encoder writes frames to an io.Writer. Each Encode writes one whole frame
// and flushes it; concurrent calls are serialized.
type Encoder struct {
	w *bufio.Writer
	sync.Mutex
}

func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderSize(w, DefaultChunkSize)
}

// NewEncoderSize returns an Encoder that copies file payloads in chunks of
// at most size bytes.
func NewEncoderSize(w io.Writer, size int) *Encoder {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Encoder{w: bufio.NewWriterSize(w, size)}
}

func (enc *Encoder) Encode(f Frame) error {
	enc.Lock()
	defer enc.Unlock()

	if Debug != nil {
		fmt.Fprintln(Debug, "<<ENC", f)
	}

	var err error
	switch f := f.(type) {
	case Text:
		err = enc.encodeText(f)
	case File:
		err = enc.encodeFile(f)
	default:
		return fmt.Errorf("frame: cannot encode %T", f)
	}
	if err != nil {
		return err
	}
	return enc.w.Flush()
}

func (enc *Encoder) encodeText(t Text) error {
	if len(t.Text) > MaxStringLen {
		return ErrStringTooLong
	}
	enc.putUint32(uint32(KindText))
	return enc.putString(t.Text)
}

func (enc *Encoder) encodeFile(f File) error {
	if len(f.Name) > MaxStringLen {
		return ErrStringTooLong
	}
	if f.Length > math.MaxInt64 {
		return fmt.Errorf("frame: file length %d out of range", f.Length)
	}
	enc.putUint32(uint32(KindFile))
	if err := enc.putString(f.Name); err != nil {
		return err
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], f.Length)
	if _, err := enc.w.Write(b[:]); err != nil {
		return err
	}
	if f.Length == 0 {
		return nil
	}
	if f.Payload == nil {
		return ErrShortPayload
	}
	n, err := io.Copy(enc.w, io.LimitReader(f.Payload, int64(f.Length)))
	if err != nil {
		return err
	}
	if uint64(n) < f.Length {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortPayload, n, f.Length)
	}
	return nil
}

func (enc *Encoder) putUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	enc.w.Write(b[:])
}

func (enc *Encoder) putString(s string) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(s)))
	enc.w.Write(b[:])
	_, err := enc.w.WriteString(s)
	return err
}
