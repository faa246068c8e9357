package session

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/progrium/pairtalk/frame"
)

// loop decodes frames until the stream fails or the session is closed.
func (s *Session) loop() {
	for {
		f, err := s.dec.Decode()
		if err == nil {
			switch f := f.(type) {
			case frame.Text:
				s.log.Debug("text received")
				s.emit(TextReceived{Meta: s.meta(), Text: f.Text})
			case frame.File:
				err = s.receiveFile(f)
			}
		}
		if err != nil {
			if s.State() == StateClosed {
				// the error is our own Close unblocking the read
				return
			}
			if err == io.EOF {
				err = nil
			}
			s.shutdown(err)
			return
		}
	}
}

func (s *Session) receiveFile(f frame.File) error {
	log := s.log.WithFields(logrus.Fields{"file": f.Name, "length": f.Length})

	art, err := s.store.Create(f.Name)
	if err != nil {
		log.WithError(err).Warn("discarding inbound file")
		if _, err := io.Copy(io.Discard, f.Payload); err != nil {
			return err
		}
		s.emit(FileDiscarded{Meta: s.meta(), Name: f.Name, TotalBytes: f.Length, Err: err})
		return nil
	}

	log.Debug("receiving file")
	prog := &progress{step: s.step, total: f.Length, report: func(done uint64) {
		s.emit(FileProgress{
			Meta:       s.meta(),
			Direction:  Inbound,
			Name:       f.Name,
			BytesSoFar: done,
			TotalBytes: f.Length,
		})
	}}
	buf := make([]byte, s.chunk)
	for prog.done < f.Length {
		n, err := f.Payload.Read(buf)
		if n > 0 {
			if _, werr := art.Write(buf[:n]); werr != nil {
				art.Abort()
				return fmt.Errorf("store %s: %w", f.Name, werr)
			}
			prog.add(n)
		}
		if err != nil && prog.done < f.Length {
			art.Abort()
			return err
		}
	}
	if err := art.Commit(); err != nil {
		return fmt.Errorf("store %s: %w", f.Name, err)
	}

	log.Info("file received")
	s.emit(FileReceived{
		Meta:       s.meta(),
		Name:       f.Name,
		Path:       art.Path(),
		TotalBytes: f.Length,
	})
	return nil
}
