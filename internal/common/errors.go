// Package common defines shared constants and sentinel errors used across
// ReembolsAí server components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Configuration errors, fatal at startup.
	ErrMissingSecretKey = errors.New("secret key is not configured")
	ErrWeakSecretKey    = errors.New("secret key is too short")
)
