package hub

import (
	"errors"
	"fmt"
)

// Domain-specific errors. Use errors.Is to check.
var (
	// ErrNotFound is the parent of every slug resolution failure.
	ErrNotFound = errors.New("not found")

	// ErrHubNotFound is returned when no session is registered for a hub slug.
	ErrHubNotFound = fmt.Errorf("hub %w", ErrNotFound)

	// ErrActivityNotFound is returned when an activity slug is not cached for the hub.
	ErrActivityNotFound = fmt.Errorf("activity %w", ErrNotFound)

	// ErrDeviceNotFound is returned when a device slug is not cached for the hub.
	ErrDeviceNotFound = fmt.Errorf("device %w", ErrNotFound)

	// ErrCommandNotFound is returned when a command slug is not part of the target.
	ErrCommandNotFound = fmt.Errorf("command %w", ErrNotFound)

	// ErrNoHubAvailable is returned when no hub session is established at all.
	ErrNoHubAvailable = errors.New("no hub available")

	// ErrUpstream wraps failures reported by the hub client.
	ErrUpstream = errors.New("hub call failed")

	// ErrSessionStopped is returned by refreshes that finish after Stop.
	ErrSessionStopped = errors.New("session stopped")
)
