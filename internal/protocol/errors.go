package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned by Decode when more bytes are needed.
	ErrIncomplete = errors.New("incomplete frame")

	// ErrFrameTooLarge is returned when a payload does not fit the length prefix.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrMalformed matches every *MalformedError.
	ErrMalformed = errors.New("malformed frame")
)

// MalformedError reports a frame that was fully read but could not be
// decoded. The offending bytes have already been discarded.
type MalformedError struct {
	Line []byte
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// IsMalformed reports whether err is a recoverable decode error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
