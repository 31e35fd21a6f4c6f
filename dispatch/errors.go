package dispatch

import "errors"

const (
	// CodeUnknownEvent marks the fatal error reported by Err when the
	// Connection produced an event kind outside its contract.
	CodeUnknownEvent int64 = 20000 + iota
)

var (
	ErrEmptyTopic = errors.New("dispatch: topic must not be empty")

	ErrNilChannel = errors.New("dispatch: channel must not be nil")

	ErrNilFactory = errors.New("dispatch: connection factory required")

	ErrAlreadyStarted = errors.New("dispatch: manager already started")

	// ErrClosed is returned by Start once the manager has been shut down.
	ErrClosed = errors.New("dispatch: manager closed")

	// ErrUnknownEvent is the cause of the fatal loop termination.
	ErrUnknownEvent = errors.New("dispatch: unknown event kind")
)
