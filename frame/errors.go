package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is matched by the error Decode returns for a kind tag it
	// does not recognize. The stream cannot be resynchronized after it.
	ErrUnknownKind = errors.New("frame: unknown kind")

	// ErrTruncated is returned when the stream ends inside a frame.
	ErrTruncated = errors.New("frame: truncated")

	// ErrStringTooLong is returned by Encode for strings over MaxStringLen bytes.
	// Nothing is written in that case.
	ErrStringTooLong = errors.New("frame: string too long")

	// ErrShortPayload is returned by Encode when a file payload ends before
	// its declared length.
	ErrShortPayload = errors.New("frame: payload shorter than declared length")
)

// UnknownKindError reports the unrecognized kind tag.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("frame: unknown kind %d", uint32(e.Kind))
}

func (e *UnknownKindError) Is(target error) bool {
	return target == ErrUnknownKind
}

func truncated(what string, err error) error {
	return fmt.Errorf("%w reading %s: %w", ErrTruncated, what, err)
}
