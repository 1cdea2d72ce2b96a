package converter

import "errors"

var (
	// ErrConverterNotFound is returned when the converter executable is
	// missing.
	ErrConverterNotFound = errors.New("converter program not found")

	// ErrNoConversionData is returned when a tab has neither a source file
	// nor source text.
	ErrNoConversionData = errors.New("no conversion data")

	// ErrUnknownMode is returned when a tab's mode has no command-line token.
	ErrUnknownMode = errors.New("unknown conversion mode")

	// ErrTargetExists is returned when the output file is already present.
	ErrTargetExists = errors.New("target file already exists")
)
