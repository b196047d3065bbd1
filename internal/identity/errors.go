package identity

import "errors"

var (
	// ErrNotFound indicates the identity does not exist.
	ErrNotFound = errors.New("identity not found")
	// ErrAlreadyExists indicates the email is already registered.
	ErrAlreadyExists = errors.New("identity already exists")
	// ErrInvalidInput indicates malformed or missing input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials indicates a failed email/password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
)
