package session

import "errors"

var (
	// ErrBusy is returned when a send is attempted while another is in flight.
	ErrBusy = errors.New("session: send already in progress")

	// ErrNotConnected is returned when a send is attempted on a session that
	// is not connected.
	ErrNotConnected = errors.New("session: not connected")

	// ErrNotRegular is returned by SendFile for paths that are not regular files.
	ErrNotRegular = errors.New("session: not a regular file")
)
