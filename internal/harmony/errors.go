package harmony

import "errors"

// Errors returned by the hub client and discovery.
var (
	// ErrProvisionFailed is returned when the hub's provisioning endpoint
	// does not yield a remote id.
	ErrProvisionFailed = errors.New("harmony: provisioning failed")

	// ErrNotConnected is returned when the WebSocket session is not open.
	ErrNotConnected = errors.New("harmony: not connected")

	// ErrClosed is returned for calls on, or pending during, Close.
	ErrClosed = errors.New("harmony: client closed")

	// ErrRequestFailed is returned when the hub answers with a non-200 code.
	ErrRequestFailed = errors.New("harmony: request failed")

	// ErrTimeout is returned when the hub does not answer within the request timeout.
	ErrTimeout = errors.New("harmony: request timed out")

	// ErrUnsupportedCommand is returned by Send for commands other than holdAction.
	ErrUnsupportedCommand = errors.New("harmony: unsupported command")

	// ErrInvalidHoldAction is returned for malformed hold-action payloads.
	ErrInvalidHoldAction = errors.New("harmony: invalid hold action")

	// ErrInvalidAnnouncement is returned for discovery data without an address.
	ErrInvalidAnnouncement = errors.New("harmony: invalid hub announcement")
)
