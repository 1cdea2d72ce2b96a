package tabs

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned by every index-taking operation given an
// index outside the valid range. The concrete error is an *IndexError.
var ErrIndexOutOfRange = errors.New("index out of range")

// IndexError describes a rejected index and the range it was checked against.
// Valid indices are [0, Limit).
type IndexError struct {
	Index int
	Limit int
}

func (e *IndexError) Error() string {
	upper := e.Limit - 1
	if upper < 0 {
		upper = 0
	}
	return fmt.Sprintf("invalid index: (0:%d) expected, %d provided", upper, e.Index)
}

// Unwrap makes errors.Is(err, ErrIndexOutOfRange) succeed.
func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// CheckRange returns an *IndexError unless 0 <= index < limit.
func CheckRange(index, limit int) error {
	if index < 0 || index >= limit {
		return &IndexError{Index: index, Limit: limit}
	}
	return nil
}
