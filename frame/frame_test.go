package frame

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
)

func fatal(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestTextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fatal(NewEncoder(&buf).Encode(Text{Text: "hello"}), t)

	f, err := NewDecoder(&buf).Decode()
	fatal(err, t)
	txt, ok := f.(Text)
	if !ok {
		t.Fatalf("unexpected frame: %#v", f)
	}
	if txt.Text != "hello" {
		t.Fatalf("unexpected text: %q", txt.Text)
	}
}

func TestTextWireLayout(t *testing.T) {
	var buf bytes.Buffer
	fatal(NewEncoder(&buf).Encode(Text{Text: "hi"}), t)

	want := []byte{0, 0, 0, 0, 0, 2, 'h', 'i'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("unexpected bytes: %v", buf.Bytes())
	}
}

func TestFileWireLayout(t *testing.T) {
	var buf bytes.Buffer
	fatal(NewEncoder(&buf).Encode(File{Name: "a", Length: 2, Payload: bytes.NewReader([]byte{9, 8})}), t)

	want := []byte{
		0, 0, 0, 1,
		0, 1, 'a',
		0, 0, 0, 0, 0, 0, 0, 2,
		9, 8,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("unexpected bytes: %v", buf.Bytes())
	}
}

func TestFileRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	data := []byte{1, 2, 3, 4, 5}
	fatal(NewEncoder(&buf).Encode(File{Name: "a.bin", Length: 5, Payload: bytes.NewReader(data)}), t)

	f, err := NewDecoder(&buf).Decode()
	fatal(err, t)
	file, ok := f.(File)
	if !ok {
		t.Fatalf("unexpected frame: %#v", f)
	}
	if file.Name != "a.bin" || file.Length != 5 {
		t.Fatalf("unexpected header: %v", file)
	}
	got, err := io.ReadAll(file.Payload)
	fatal(err, t)
	if !bytes.Equal(got, data) {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestFileLargerThanChunk(t *testing.T) {
	var buf bytes.Buffer
	data := bytes.Repeat([]byte("0123456789"), 2000)
	enc := NewEncoderSize(&buf, 512)
	fatal(enc.Encode(File{Name: "big", Length: uint64(len(data)), Payload: bytes.NewReader(data)}), t)

	f, err := NewDecoder(&buf).Decode()
	fatal(err, t)
	got, err := io.ReadAll(f.(File).Payload)
	fatal(err, t)
	if !bytes.Equal(got, data) {
		t.Fatal("payload mismatch")
	}
}

func TestZeroLengthFile(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	fatal(enc.Encode(File{Name: "empty"}), t)
	fatal(enc.Encode(Text{Text: "after"}), t)

	dec := NewDecoder(&buf)
	f, err := dec.Decode()
	fatal(err, t)
	file := f.(File)
	if file.Length != 0 {
		t.Fatalf("unexpected length: %d", file.Length)
	}
	got, err := io.ReadAll(file.Payload)
	fatal(err, t)
	if len(got) != 0 {
		t.Fatalf("unexpected payload: %v", got)
	}

	f, err = dec.Decode()
	fatal(err, t)
	if f.(Text).Text != "after" {
		t.Fatalf("unexpected frame: %v", f)
	}
}

func TestUnreadPayloadIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	fatal(enc.Encode(File{Name: "skip", Length: 3, Payload: strings.NewReader("abc")}), t)
	fatal(enc.Encode(Text{Text: "next"}), t)

	dec := NewDecoder(&buf)
	_, err := dec.Decode()
	fatal(err, t)
	f, err := dec.Decode()
	fatal(err, t)
	if f.(Text).Text != "next" {
		t.Fatalf("unexpected frame: %v", f)
	}
}

func TestCleanEOF(t *testing.T) {
	_, err := NewDecoder(bytes.NewReader(nil)).Decode()
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got: %v", err)
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := NewDecoder(bytes.NewReader([]byte{0, 0, 0, 7})).Decode()
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got: %v", err)
	}
	var kindErr *UnknownKindError
	if !errors.As(err, &kindErr) || kindErr.Kind != 7 {
		t.Fatalf("unexpected error: %#v", err)
	}
}

func TestTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	data := make([]byte, 1000)
	fatal(NewEncoder(&buf).Encode(File{Name: "cut", Length: 1000, Payload: bytes.NewReader(data)}), t)
	wire := buf.Bytes()[:buf.Len()-500]

	f, err := NewDecoder(bytes.NewReader(wire)).Decode()
	fatal(err, t)
	got, err := io.ReadAll(f.(File).Payload)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got: %v", err)
	}
	if len(got) != 500 {
		t.Fatalf("unexpected payload length: %d", len(got))
	}
}

type resetReader struct{}

func (resetReader) Read([]byte) (int, error) {
	return 0, &os.SyscallError{Syscall: "read", Err: syscall.ECONNRESET}
}

// reset returns a reader that yields wire and then fails as a reset
// connection does.
func reset(wire []byte) io.Reader {
	return io.MultiReader(bytes.NewReader(wire), resetReader{})
}

func TestResetIsTruncation(t *testing.T) {
	var buf bytes.Buffer
	fatal(NewEncoder(&buf).Encode(File{Name: "cut", Length: 1000, Payload: bytes.NewReader(make([]byte, 1000))}), t)

	f, err := NewDecoder(reset(buf.Bytes()[:buf.Len()-500])).Decode()
	fatal(err, t)
	got, err := io.ReadAll(f.(File).Payload)
	if !errors.Is(err, ErrTruncated) || !errors.Is(err, syscall.ECONNRESET) {
		t.Fatalf("expected ErrTruncated, got: %v", err)
	}
	if len(got) != 500 {
		t.Fatalf("unexpected payload length: %d", len(got))
	}

	for _, wire := range [][]byte{
		{0, 0},
		{0, 0, 0, 0, 0, 5, 'a'},
		{0, 0, 0, 1, 0, 1, 'a', 0, 0},
	} {
		_, err := NewDecoder(reset(wire)).Decode()
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("expected ErrTruncated for %v, got: %v", wire, err)
		}
	}

	if _, err := NewDecoder(reset(nil)).Decode(); err != io.EOF {
		t.Fatalf("expected io.EOF between frames, got: %v", err)
	}
}

func TestTruncatedHeader(t *testing.T) {
	for _, wire := range [][]byte{
		{0, 0},
		{0, 0, 0, 0, 0, 5, 'a'},
		{0, 0, 0, 1, 0, 1, 'a', 0, 0},
	} {
		_, err := NewDecoder(bytes.NewReader(wire)).Decode()
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("expected ErrTruncated for %v, got: %v", wire, err)
		}
	}
}

func TestStringTooLong(t *testing.T) {
	var buf bytes.Buffer
	err := NewEncoder(&buf).Encode(Text{Text: strings.Repeat("x", MaxStringLen+1)})
	if !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected bytes written: %d", buf.Len())
	}
}

func TestShortPayload(t *testing.T) {
	var buf bytes.Buffer
	err := NewEncoder(&buf).Encode(File{Name: "short", Length: 10, Payload: strings.NewReader("abc")})
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got: %v", err)
	}
}
