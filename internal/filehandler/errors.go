package filehandler

import "errors"

var (
	// ErrNoFileOpened is returned when saving a tab side that has no backing
	// file path. Nothing is written.
	ErrNoFileOpened = errors.New("no file opened")

	// ErrFileNotFound is returned when the backing file of a tab side no
	// longer exists. Nothing is written.
	ErrFileNotFound = errors.New("file not found")
)
