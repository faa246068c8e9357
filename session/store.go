package session

import "io"

// Store provides writable targets for inbound files.
type Store interface {
	// Create returns an artifact for a file declared with the given name.
	Create(name string) (Artifact, error)
}

// Artifact is an inbound file being written.
type Artifact interface {
	io.Writer

	// Path returns where the file is stored.
	Path() string

	// Commit is called once every declared byte has been written.
	Commit() error

	// Abort is called when the transfer fails part way.
	Abort() error
}

type discardStore struct{}

func (discardStore) Create(string) (Artifact, error) {
	return discardArtifact{}, nil
}

type discardArtifact struct{}

func (discardArtifact) Write(p []byte) (int, error) { return len(p), nil }
func (discardArtifact) Path() string                { return "" }
func (discardArtifact) Commit() error               { return nil }
func (discardArtifact) Abort() error                { return nil }
