// Package common defines shared constants and sentinel errors used across
// the service and transport layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("email already registered")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// One-time code errors. Distinguishable from each other on purpose.
	ErrOTPNotFound = errors.New("no otp found for this email")
	ErrOTPExpired  = errors.New("otp has expired")
	ErrOTPInvalid  = errors.New("invalid otp")

	// Infrastructure errors.
	ErrHashing   = errors.New("hashing failed")
	ErrTransport = errors.New("transport failed")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
