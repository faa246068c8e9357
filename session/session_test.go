package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/progrium/pairtalk/frame"
	"github.com/progrium/pairtalk/transport"
)

func fatal(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

type recorder chan Event

func newRecorder() recorder {
	return make(recorder, 4096)
}

func (r recorder) Emit(e Event) {
	r <- e
}

// next returns the next event of type T, skipping others.
func next[T Event](t *testing.T, r recorder) T {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-r:
			if v, ok := e.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// drain returns the events left in r without blocking.
func drain(r recorder) []Event {
	var events []Event
	for {
		select {
		case e := <-r:
			events = append(events, e)
		default:
			return events
		}
	}
}

// until returns the events up to and including the first of type T.
func until[T Event](t *testing.T, r recorder) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-r:
			events = append(events, e)
			if _, ok := e.(T); ok {
				return events
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return nil
		}
	}
}

type memArtifact struct {
	bytes.Buffer
	name      string
	committed bool
	aborted   bool
}

func (a *memArtifact) Path() string  { return "mem://" + a.name }
func (a *memArtifact) Commit() error { a.committed = true; return nil }
func (a *memArtifact) Abort() error  { a.aborted = true; return nil }

type memStore struct {
	mu     sync.Mutex
	files  map[string]*memArtifact
	reject error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string]*memArtifact)}
}

func (m *memStore) Create(name string) (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject != nil {
		return nil, m.reject
	}
	a := &memArtifact{name: name}
	m.files[name] = a
	return a, nil
}

func (m *memStore) get(name string) *memArtifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[name]
}

func newPair(cfgA, cfgB Config) (*Session, *Session) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	sa, _ := transport.DialIO(aw, ar)
	sb, _ := transport.DialIO(bw, br)
	return New(sa, cfgA), New(sb, cfgB)
}

// newRaw returns a session whose peer is driven directly by the test.
func newRaw(cfg Config) (*Session, io.WriteCloser, io.ReadCloser) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	sa, _ := transport.DialIO(aw, ar)
	return New(sa, cfg), bw, br
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	fatal(os.WriteFile(path, data, 0o644), t)
	return path
}

func TestTextExchange(t *testing.T) {
	evA, evB := newRecorder(), newRecorder()
	a, b := newPair(Config{Sink: evA}, Config{Sink: evB})

	if e := next[Connected](t, evA); e.Source() != a.ID() {
		t.Fatalf("unexpected session id: %s", e.Source())
	}
	next[Connected](t, evB)

	p, err := a.SendText("ping")
	fatal(err, t)
	fatal(p.Wait(), t)

	if e := next[TextReceived](t, evB); e.Text != "ping" {
		t.Fatalf("unexpected text: %q", e.Text)
	}
	if e := next[TextSent](t, evA); e.Text != "ping" {
		t.Fatalf("unexpected text: %q", e.Text)
	}

	fatal(a.Close(), t)
	fatal(a.Wait(), t)
	fatal(b.Wait(), t)

	if e := next[Disconnected](t, evA); e.Err != nil {
		t.Fatalf("unexpected error: %v", e.Err)
	}
	if e := next[Disconnected](t, evB); e.Err != nil {
		t.Fatalf("unexpected error: %v", e.Err)
	}
	if a.State() != StateClosed || b.State() != StateClosed {
		t.Fatalf("unexpected states: %s %s", a.State(), b.State())
	}
}

func TestConnectedFirstDisconnectedLast(t *testing.T) {
	evA, evB := newRecorder(), newRecorder()
	a, b := newPair(Config{Sink: evA}, Config{Sink: evB})

	for i := 0; i < 3; i++ {
		p, err := a.SendText(fmt.Sprint(i))
		fatal(err, t)
		fatal(p.Wait(), t)
	}
	fatal(b.Close(), t)
	a.Wait()
	b.Wait()

	events := drain(evB)
	if _, ok := events[0].(Connected); !ok {
		t.Fatalf("first event is %T", events[0])
	}
	if _, ok := events[len(events)-1].(Disconnected); !ok {
		t.Fatalf("last event is %T", events[len(events)-1])
	}
}

func TestCloseIdempotent(t *testing.T) {
	evA := newRecorder()
	a, b := newPair(Config{Sink: evA}, Config{})
	defer b.Close()

	fatal(a.Close(), t)
	fatal(a.Close(), t)
	a.Wait()

	n := 0
	for _, e := range drain(evA) {
		if _, ok := e.(Disconnected); ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected one Disconnected, got %d", n)
	}
}

func TestSinkClosesSession(t *testing.T) {
	ev := newRecorder()
	var self atomic.Pointer[Session]
	sink := SinkFunc(func(e Event) {
		switch e := e.(type) {
		case TextReceived:
			if e.Text == "bye" {
				self.Load().Close()
			}
		case Disconnected:
			self.Load().Close()
		}
		ev.Emit(e)
	})
	a, b := newPair(Config{}, Config{Sink: sink})
	self.Store(b)
	defer a.Close()

	p, err := a.SendText("bye")
	fatal(err, t)
	fatal(p.Wait(), t)

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close")
	}
	fatal(b.Wait(), t)
	if e := next[Disconnected](t, ev); e.Err != nil {
		t.Fatalf("unexpected error: %v", e.Err)
	}
	if b.State() != StateClosed {
		t.Fatalf("unexpected state: %s", b.State())
	}
}

func TestSinkRepliesFromEmit(t *testing.T) {
	evA := newRecorder()
	var self atomic.Pointer[Session]
	sink := SinkFunc(func(e Event) {
		if e, ok := e.(TextReceived); ok && e.Text == "ping" {
			p, err := self.Load().SendText("pong")
			if err != nil {
				t.Errorf("reply: %v", err)
				return
			}
			if err := p.Wait(); err != nil {
				t.Errorf("reply: %v", err)
			}
		}
	})
	a, b := newPair(Config{Sink: evA}, Config{Sink: sink})
	self.Store(b)
	defer a.Close()
	defer b.Close()

	p, err := a.SendText("ping")
	fatal(err, t)
	fatal(p.Wait(), t)
	if e := next[TextReceived](t, evA); e.Text != "pong" {
		t.Fatalf("unexpected text: %q", e.Text)
	}
}

func TestSendAfterClose(t *testing.T) {
	a, b := newPair(Config{}, Config{})
	defer b.Close()
	fatal(a.Close(), t)

	if _, err := a.SendText("late"); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got: %v", err)
	}
	if _, err := a.SendFile(writeTemp(t, "late.txt", []byte("x"))); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got: %v", err)
	}
}

func TestSequentialSendsArriveInOrder(t *testing.T) {
	evB := newRecorder()
	store := newMemStore()
	a, b := newPair(Config{}, Config{Sink: evB, Store: store})
	defer a.Close()
	defer b.Close()

	path := writeTemp(t, "mid.txt", []byte("middle"))
	for i := 0; i < 5; i++ {
		var p *Pending
		var err error
		if i == 2 {
			p, err = a.SendFile(path)
		} else {
			p, err = a.SendText(fmt.Sprint(i))
		}
		fatal(err, t)
		fatal(p.Wait(), t)
	}

	for i := 0; i < 5; i++ {
		if i == 2 {
			if e := next[FileReceived](t, evB); e.Name != "mid.txt" {
				t.Fatalf("unexpected file: %v", e)
			}
			continue
		}
		if e := next[TextReceived](t, evB); e.Text != fmt.Sprint(i) {
			t.Fatalf("unexpected text at %d: %q", i, e.Text)
		}
	}
}

func TestFileTransfer(t *testing.T) {
	evA, evB := newRecorder(), newRecorder()
	store := newMemStore()
	a, b := newPair(
		Config{Sink: evA, ProgressStep: 1024},
		Config{Sink: evB, Store: store, ProgressStep: 1024},
	)
	defer a.Close()
	defer b.Close()

	data := bytes.Repeat([]byte("pairtalk"), 1024)
	path := writeTemp(t, "a.bin", data)

	p, err := a.SendFile(path)
	fatal(err, t)
	fatal(p.Wait(), t)

	e := next[FileReceived](t, evB)
	if e.Name != "a.bin" || e.TotalBytes != uint64(len(data)) || e.Path != "mem://a.bin" {
		t.Fatalf("unexpected event: %#v", e)
	}
	got := store.get("a.bin")
	if !got.committed || !bytes.Equal(got.Bytes(), data) {
		t.Fatal("stored file does not match")
	}

	var last FileProgress
	for _, ev := range until[FileSent](t, evA) {
		if fp, ok := ev.(FileProgress); ok {
			if fp.Direction != Outbound {
				t.Fatalf("unexpected direction: %s", fp.Direction)
			}
			last = fp
		}
	}
	if last.BytesSoFar != uint64(len(data)) {
		t.Fatalf("unexpected final progress: %#v", last)
	}
}

func TestInboundProgress(t *testing.T) {
	evB := newRecorder()
	a, b := newPair(Config{}, Config{Sink: evB, Store: newMemStore(), ProgressStep: 1000})
	defer a.Close()
	defer b.Close()

	p, err := a.SendFile(writeTemp(t, "p.bin", make([]byte, 10000)))
	fatal(err, t)
	fatal(p.Wait(), t)

	var steps []uint64
	for _, ev := range until[FileReceived](t, evB) {
		if fp, ok := ev.(FileProgress); ok {
			if fp.Direction != Inbound || fp.TotalBytes != 10000 {
				t.Fatalf("unexpected progress: %#v", fp)
			}
			steps = append(steps, fp.BytesSoFar)
		}
	}
	if len(steps) == 0 || steps[len(steps)-1] != 10000 {
		t.Fatalf("unexpected progress steps: %v", steps)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] <= steps[i-1] {
			t.Fatalf("progress not increasing: %v", steps)
		}
	}
}

func TestZeroLengthFile(t *testing.T) {
	evB := newRecorder()
	store := newMemStore()
	a, b := newPair(Config{}, Config{Sink: evB, Store: store})
	defer a.Close()
	defer b.Close()

	p, err := a.SendFile(writeTemp(t, "empty", nil))
	fatal(err, t)
	fatal(p.Wait(), t)

	e := next[FileReceived](t, evB)
	if e.Name != "empty" || e.TotalBytes != 0 {
		t.Fatalf("unexpected event: %#v", e)
	}
	if !store.get("empty").committed {
		t.Fatal("empty file not committed")
	}
}

func TestConcurrentSendIsBusy(t *testing.T) {
	a, peerOut, peerIn := newRaw(Config{})
	defer peerOut.Close()
	defer a.Close()

	data := bytes.Repeat([]byte{0xAB}, 64*1024)
	p, err := a.SendFile(writeTemp(t, "big.bin", data))
	fatal(err, t)

	// the peer is not reading, so the first send cannot finish
	if _, err := a.SendFile(writeTemp(t, "other.bin", []byte("x"))); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got: %v", err)
	}
	if _, err := a.SendText("hi"); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got: %v", err)
	}

	dec := frame.NewDecoder(peerIn)
	f, err := dec.Decode()
	fatal(err, t)
	file, ok := f.(frame.File)
	if !ok || file.Name != "big.bin" || file.Length != uint64(len(data)) {
		t.Fatalf("unexpected frame: %v", f)
	}
	got, err := io.ReadAll(file.Payload)
	fatal(err, t)
	if !bytes.Equal(got, data) {
		t.Fatal("payload corrupted")
	}
	fatal(p.Wait(), t)

	p, err = a.SendText("after")
	fatal(err, t)
	f, err = dec.Decode()
	fatal(err, t)
	if f.(frame.Text).Text != "after" {
		t.Fatalf("unexpected frame: %v", f)
	}
	fatal(p.Wait(), t)
}

func TestConcurrentSendersNeverInterleave(t *testing.T) {
	evB := newRecorder()
	a, b := newPair(Config{}, Config{Sink: evB})
	defer a.Close()
	defer b.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pending []*Pending
		busy    int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := a.SendText(fmt.Sprint(i))
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				pending = append(pending, p)
			case ErrBusy:
				busy++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	for _, p := range pending {
		fatal(p.Wait(), t)
	}
	if len(pending)+busy != 50 {
		t.Fatalf("lost sends: %d ok, %d busy", len(pending), busy)
	}
	for range pending {
		next[TextReceived](t, evB)
	}
}

func TestTruncatedStream(t *testing.T) {
	ev := newRecorder()
	store := newMemStore()
	a, peerOut, peerIn := newRaw(Config{Sink: ev, Store: store})
	defer peerIn.Close()

	var buf bytes.Buffer
	fatal(frame.NewEncoder(&buf).Encode(frame.File{
		Name:    "cut.bin",
		Length:  1000,
		Payload: bytes.NewReader(make([]byte, 1000)),
	}), t)
	_, err := peerOut.Write(buf.Bytes()[:buf.Len()-500])
	fatal(err, t)
	fatal(peerOut.Close(), t)

	e := next[Disconnected](t, ev)
	if !errors.Is(e.Err, frame.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got: %v", e.Err)
	}
	if !errors.Is(a.Wait(), frame.ErrTruncated) {
		t.Fatalf("unexpected session error: %v", a.Err())
	}
	for _, ev := range drain(ev) {
		if _, ok := ev.(FileReceived); ok {
			t.Fatal("unexpected FileReceived")
		}
	}
	if art := store.get("cut.bin"); art == nil || !art.aborted || art.committed {
		t.Fatal("partial artifact was not aborted")
	}
}

func TestUnknownKindClosesSession(t *testing.T) {
	ev := newRecorder()
	a, peerOut, peerIn := newRaw(Config{Sink: ev})
	defer peerIn.Close()
	defer peerOut.Close()

	_, err := peerOut.Write([]byte{0, 0, 0, 9})
	fatal(err, t)

	e := next[Disconnected](t, ev)
	if !errors.Is(e.Err, frame.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got: %v", e.Err)
	}
	if a.IsConnected() {
		t.Fatal("session still connected")
	}
}

func TestRejectedFileIsDiscarded(t *testing.T) {
	evB := newRecorder()
	store := newMemStore()
	store.reject = errors.New("no space")
	a, b := newPair(Config{}, Config{Sink: evB, Store: store})
	defer a.Close()
	defer b.Close()

	p, err := a.SendFile(writeTemp(t, "x.bin", []byte("payload")))
	fatal(err, t)
	fatal(p.Wait(), t)
	p, err = a.SendText("still here")
	fatal(err, t)
	fatal(p.Wait(), t)

	if e := next[FileDiscarded](t, evB); e.Name != "x.bin" || e.Err == nil {
		t.Fatalf("unexpected event: %#v", e)
	}
	if e := next[TextReceived](t, evB); e.Text != "still here" {
		t.Fatalf("unexpected text: %q", e.Text)
	}
}

func TestSendFileErrorsKeepSession(t *testing.T) {
	a, b := newPair(Config{}, Config{})
	defer a.Close()
	defer b.Close()

	if _, err := a.SendFile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got: %v", err)
	}
	if _, err := a.SendFile(t.TempDir()); !errors.Is(err, ErrNotRegular) {
		t.Fatalf("expected ErrNotRegular, got: %v", err)
	}
	p, err := a.SendText("ok")
	fatal(err, t)
	fatal(p.Wait(), t)
}

func TestQueue(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 100; i++ {
		q.Emit(TextReceived{Text: fmt.Sprint(i)})
	}
	q.Close()
	q.Emit(TextReceived{Text: "dropped"})

	i := 0
	for e := range q.Events() {
		if e.(TextReceived).Text != fmt.Sprint(i) {
			t.Fatalf("out of order at %d: %v", i, e)
		}
		i++
	}
	if i != 100 {
		t.Fatalf("expected 100 events, got %d", i)
	}
}
