// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Hashing and authentication primitives.
var (
	// ErrInvalidFormat indicates an encoded hash that does not match the
	// $argon2id$v=..$m=..,t=..,p=..$salt$hash grammar or carries out-of-range values.
	ErrInvalidFormat = errors.New("invalid encoded hash")

	// ErrDerivation indicates the key derivation primitive rejected its parameters.
	ErrDerivation = errors.New("key derivation failed")

	// ErrRandomUnavailable indicates the secure random source could not produce bytes.
	ErrRandomUnavailable = errors.New("secure random source unavailable")
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates a request rejected before touching storage.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a concurrent modification (row changed underneath the update).
	ErrConflict = errors.New("conflict")
)
