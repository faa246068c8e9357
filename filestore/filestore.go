// Package filestore stores inbound session files in a local directory.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/progrium/pairtalk/session"
)

// ErrExists is returned by Create under the Reject policy when a file with
// the same name is already stored.
var ErrExists = errors.New("file already exists")

// Conflict decides what happens when an inbound file name is already taken.
type Conflict int

const (
	// Overwrite replaces the existing file.
	Overwrite Conflict = iota
	// Rename stores the file as "name (1).ext", "name (2).ext" and so on.
	Rename
	// Reject refuses the file, which the session then discards.
	Reject
)

func (c Conflict) String() string {
	switch c {
	case Rename:
		return "rename"
	case Reject:
		return "reject"
	default:
		return "overwrite"
	}
}

// ParseConflict parses a policy name as used in configuration files. The
// empty string is Overwrite.
func ParseConflict(s string) (Conflict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return Overwrite, nil
	case "rename":
		return Rename, nil
	case "reject":
		return Reject, nil
	}
	return Overwrite, fmt.Errorf("unknown conflict policy %q", s)
}

// maxRenames bounds the search for a free name under the Rename policy.
const maxRenames = 1000

// Dir is a session.Store writing into a directory, created on first use.
type Dir struct {
	Path     string
	Conflict Conflict

	// RemovePartial deletes files whose transfer was cut short. By default
	// they are left in place.
	RemovePartial bool
}

var _ session.Store = (*Dir)(nil)

// Create opens the file for an inbound transfer. Only the base of name is
// used, so a peer cannot write outside the directory.
func (d *Dir) Create(name string) (session.Artifact, error) {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return nil, err
	}
	name = Sanitize(name)
	path := filepath.Join(d.Path, name)

	switch d.Conflict {
	case Reject:
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrExists)
		}
		if err != nil {
			return nil, err
		}
		return d.artifact(f), nil

	case Rename:
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for i := 0; i <= maxRenames; i++ {
			if i > 0 {
				path = filepath.Join(d.Path, fmt.Sprintf("%s (%d)%s", stem, i, ext))
			}
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if errors.Is(err, os.ErrExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return d.artifact(f), nil
		}
		return nil, fmt.Errorf("%s: %w", name, ErrExists)

	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return d.artifact(f), nil
	}
}

func (d *Dir) artifact(f *os.File) *artifact {
	return &artifact{File: f, remove: d.RemovePartial}
}

// Sanitize reduces a declared file name to a safe base name.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	switch name {
	case "", ".", "..", "/":
		return "unnamed"
	}
	return name
}

type artifact struct {
	*os.File
	remove bool
}

func (a *artifact) Path() string {
	return a.Name()
}

func (a *artifact) Commit() error {
	if err := a.Sync(); err != nil {
		a.File.Close()
		return err
	}
	return a.File.Close()
}

func (a *artifact) Abort() error {
	err := a.File.Close()
	if a.remove {
		if rerr := os.Remove(a.Name()); rerr != nil {
			return errors.Join(err, rerr)
		}
	}
	return err
}
