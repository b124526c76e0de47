// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidUserPK indicates a user public key that is not 64 hex characters.
	ErrInvalidUserPK = errors.New("invalid user public key")
)
