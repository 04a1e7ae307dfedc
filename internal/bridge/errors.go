package bridge

import "errors"

var (
	// ErrInvalidPayload indicates an inbound command payload could not be parsed.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrNotStarted indicates Stop was called before Start.
	ErrNotStarted = errors.New("bridge: not started")
)
