package auth

import "errors"

var (
	// ErrEmailAlreadyExists rejects a registration against a taken address.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials covers every login failure so responses never
	// reveal whether the address is registered.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound signals that no account matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized represents a missing, malformed or expired token.
	ErrUnauthorized = errors.New("unauthorized")
)
