package services

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when a bearer token is missing,
	// malformed, expired or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already taken")
)
