// Package codec encodes journal records as a sequence of values on a stream.
package codec

import (
	"fmt"
	"io"
	"strings"
)

type Encoder interface {
	// Encode writes an encoding of v to its Writer.
	Encode(v any) error
}

type Decoder interface {
	// Decode reads the next encoded value from its Reader and stores it in the value pointed to by v.
	Decode(v any) error
}

// Codec returns an Encoder or Decoder given a Writer or Reader.
type Codec interface {
	Encoder(w io.Writer) Encoder
	Decoder(r io.Reader) Decoder
}

// ByName returns the codec for a format name used in configuration:
// "json" (newline separated) or "cbor" (length prefixed). The empty name is
// json.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return &FrameCodec{Codec: CBORCodec{}}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}
