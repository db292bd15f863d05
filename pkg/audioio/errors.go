package audioio

import "errors"

var (
	// ErrNotStarted is returned when writing to a sink before Start.
	ErrNotStarted = errors.New("audio sink not started")

	// ErrBlockSize is returned when a written block does not match the
	// session format.
	ErrBlockSize = errors.New("block length does not match session format")
)
