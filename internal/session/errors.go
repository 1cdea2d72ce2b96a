package session

import "errors"

var (
	// ErrLastTab is returned when closing the only open tab.
	ErrLastTab = errors.New("cannot close the last tab")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)
