package events

import "errors"

var (
	// ErrNotFound is returned when no definition exists for a name.
	ErrNotFound = errors.New("event definition not found")

	// ErrDuplicate is returned when registering a name twice.
	ErrDuplicate = errors.New("event definition already registered")
)
