package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/progrium/pairtalk/session"
)

// chat sends each line of in over s until in ends, "/quit" is entered or
// the session closes. "/file <path>" sends a file instead of text.
func chat(s *session.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-s.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-s.Done():
			return s.Err()
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				s.Close()
				return nil
			}
			if line == "" {
				continue
			}

			var (
				p   *session.Pending
				err error
			)
			if path, isFile := strings.CutPrefix(line, "/file "); isFile {
				p, err = s.SendFile(strings.TrimSpace(path))
			} else {
				p, err = s.SendText(line)
			}
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			select {
			case <-p.Done():
			case <-s.Done():
			}
		}
	}
}

// printEvents writes a line per event until events is closed.
func printEvents(events <-chan session.Event, out io.Writer) {
	for e := range events {
		switch e := e.(type) {
		case session.TextReceived:
			fmt.Fprintf(out, "< %s\n", e.Text)
		case session.TextSent:
			// echoed by the terminal
		case session.FileProgress:
			if e.TotalBytes > 0 {
				fmt.Fprintf(out, "  %s %s %d%%\n", e.Direction, e.Name, e.BytesSoFar*100/e.TotalBytes)
			}
		default:
			fmt.Fprintf(out, "* %s\n", e)
		}
	}
}
