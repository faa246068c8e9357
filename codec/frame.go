package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameSize bounds the value a FrameCodec decoder will read.
const MaxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("codec frame too large")

// FrameCodec prefixes each value with its big-endian uint32 length, so a
// reader can skip or bound values without decoding them. A stream cut in
// the middle of a value decodes as io.ErrUnexpectedEOF.
type FrameCodec struct {
	Codec
}

func (c *FrameCodec) Encoder(w io.Writer) Encoder {
	return &frameEncoder{
		w: w,
		c: c.Codec,
	}
}

type frameEncoder struct {
	w   io.Writer
	c   Codec
	buf bytes.Buffer
}

func (e *frameEncoder) Encode(v any) error {
	e.buf.Reset()
	e.buf.Write([]byte{0, 0, 0, 0})
	if err := e.c.Encoder(&e.buf).Encode(v); err != nil {
		return err
	}
	b := e.buf.Bytes()
	if len(b)-4 > MaxFrameSize {
		return ErrFrameTooLarge
	}
	binary.BigEndian.PutUint32(b, uint32(len(b)-4))
	_, err := e.w.Write(b)
	return err
}

func (c *FrameCodec) Decoder(r io.Reader) Decoder {
	return &frameDecoder{
		r: r,
		c: c.Codec,
	}
}

type frameDecoder struct {
	r io.Reader
	c Codec
}

func (d *frameDecoder) Decode(v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(d.r, prefix[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return d.c.Decoder(bytes.NewReader(buf)).Decode(v)
}
