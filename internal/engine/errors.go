package engine

import "errors"

var (
	// ErrUndefined is returned by Frame.Eval for references to names that
	// do not exist.
	ErrUndefined = errors.New("undefined name")

	// ErrAbort is returned by hooks to stop the running program.
	ErrAbort = errors.New("program aborted")

	// ErrDisconnected is returned by Serve when the command stream ends.
	ErrDisconnected = errors.New("control connection lost")
)

func IsUndefined(err error) bool {
	return errors.Is(err, ErrUndefined)
}

func IsAbort(err error) bool {
	return errors.Is(err, ErrAbort)
}
