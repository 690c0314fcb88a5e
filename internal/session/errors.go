package session

import "errors"

var (
	// ErrBackendUnavailable is returned when a backend process could not be
	// started.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnknownDebugger is returned when a command names a debugger id that
	// is not connected while a master exists.
	ErrUnknownDebugger = errors.New("unknown debugger id")

	// ErrConnectionDead is returned when a socket write exhausted its retries.
	ErrConnectionDead = errors.New("connection dead")

	// ErrManagerStopped is returned by calls made after Run returned.
	ErrManagerStopped = errors.New("session manager stopped")
)

// IsTransportError reports whether err came from a backend socket.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrConnectionDead)
}

// IsFatal reports whether err leaves the session without a usable backend.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
