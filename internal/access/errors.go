package access

import "errors"

var (
	// ErrConflict indicates a live (pending or approved) request already
	// exists for the user.
	ErrConflict = errors.New("request already pending or approved")
	// ErrNotFound indicates no pending request exists to decide on.
	ErrNotFound = errors.New("no pending request")
	// ErrUnauthorized indicates the caller lacks the capability for the
	// operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput indicates malformed or missing input.
	ErrInvalidInput = errors.New("invalid input")
)
