// Package frame implements encoding and decoding of pairtalk wire frames.
//
// A frame starts with a big-endian uint32 kind tag. Text frames carry one
// string; file frames carry a name, a uint64 length and exactly that many
// raw payload bytes. Strings are prefixed with their uint16 byte length.
package frame

import (
	"fmt"
	"io"
	"math"
)

var (
	// Debug can be set to get frames as they're encoded and decoded
	Debug io.Writer
)

const (
	// DefaultChunkSize is the size of the buffer used to copy file payloads.
	DefaultChunkSize = 4096

	// MaxStringLen is the longest string, in bytes, a frame can carry.
	MaxStringLen = math.MaxUint16
)

// Kind is the tag that starts every frame on the wire.
type Kind uint32

const (
	KindText Kind = iota
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Frame is one self-delimiting protocol message, either a Text or a File.
type Frame interface {
	Kind() Kind
	String() string
}

// Text is a short UTF-8 message.
type Text struct {
	Text string
}

func (Text) Kind() Kind { return KindText }

func (t Text) String() string {
	return fmt.Sprintf("{Text %q}", t.Text)
}

// File is a whole-file transfer. When encoding, Payload must yield at least
// Length bytes. When decoding, Payload yields exactly Length bytes and must be
// consumed before the next Decode, which otherwise discards what is left.
type File struct {
	Name    string
	Length  uint64
	Payload io.Reader
}

func (File) Kind() Kind { return KindFile }

func (f File) String() string {
	return fmt.Sprintf("{File %q Length:%d}", f.Name, f.Length)
}
