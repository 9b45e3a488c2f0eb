package repository

import "errors"

// Sentinel kinds for snapshot storage errors.
var (
	// ErrStorage marks a snapshot that could not be read or written for a
	// reason other than absence.
	ErrStorage = errors.New("snapshot storage failed")
	// ErrUnknownDriver is returned by Open for an unsupported backend.
	ErrUnknownDriver = errors.New("unknown storage driver")
	// errNotExist is the backend signal for an absent snapshot.
	errNotExist = errors.New("snapshot does not exist")
)
