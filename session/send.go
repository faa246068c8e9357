package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/progrium/pairtalk/frame"
)

// Pending is a send running on a worker goroutine.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Done returns a channel that is closed when the send has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the send has finished and returns its error. A non-nil
// error means the session has been closed.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// SendText writes a text frame on a worker goroutine. It fails immediately
// with ErrNotConnected or ErrBusy, or frame.ErrStringTooLong for text over
// frame.MaxStringLen bytes.
func (s *Session) SendText(text string) (*Pending, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	if len(text) > frame.MaxStringLen {
		s.release()
		return nil, frame.ErrStringTooLong
	}
	return s.dispatch(func() error {
		if err := s.enc.Encode(frame.Text{Text: text}); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
		s.log.Debug("text sent")
		s.emit(TextSent{Meta: s.meta(), Text: text})
		return nil
	})
}

// SendFile streams the file at path on a worker goroutine, emitting outbound
// FileProgress as chunks are written. Besides the admission errors of
// SendText it fails immediately if the file cannot be opened or is not a
// regular file; nothing is written to the stream in that case.
func (s *Session) SendFile(path string) (*Pending, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	f, size, err := openRegular(path)
	if err != nil {
		s.release()
		return nil, err
	}
	name := filepath.Base(path)
	if len(name) > frame.MaxStringLen {
		f.Close()
		s.release()
		return nil, frame.ErrStringTooLong
	}

	total := uint64(size)
	p, err := s.dispatch(func() error {
		defer f.Close()
		log := s.log.WithField("file", name)
		log.Debug("sending file")
		r := &progressReader{r: f, progress: progress{step: s.step, total: total, report: func(done uint64) {
			s.emit(FileProgress{
				Meta:       s.meta(),
				Direction:  Outbound,
				Name:       name,
				BytesSoFar: done,
				TotalBytes: total,
			})
		}}}
		if err := s.enc.Encode(frame.File{Name: name, Length: total, Payload: r}); err != nil {
			return fmt.Errorf("send file %s: %w", name, err)
		}
		log.Info("file sent")
		s.emit(FileSent{Meta: s.meta(), Name: name, Path: path, TotalBytes: total})
		return nil
	})
	if err != nil {
		f.Close()
	}
	return p, err
}

func (s *Session) acquire() error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	if !s.sending.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) release() {
	s.sending.Store(false)
}

// dispatch runs work on a send worker. The caller must hold the send flag;
// it is released when work returns. An error from work closes the session.
func (s *Session) dispatch(work func() error) (*Pending, error) {
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()
	if s.State() != StateConnected {
		s.release()
		return nil, ErrNotConnected
	}
	p := newPending()
	s.workers.Go(func() {
		err := work()
		if err != nil {
			s.shutdown(err)
		}
		s.release()
		p.finish(err)
	})
	return p, nil
}

func openRegular(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	return f, info.Size(), nil
}

type progressReader struct {
	r io.Reader
	progress
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.add(n)
	}
	return n, err
}
