// Package otp keeps one-time password reset codes keyed by email. Expiry is
// evaluated lazily on lookup; an entry observed past its expiry is deleted
// and reported as ErrExpired so callers can tell "never requested" from
// "requested but timed out".
package otp

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a freshly issued code stays valid.
const DefaultTTL = 10 * time.Minute

var (
	ErrNotFound = errors.New("otp: no entry")
	ErrExpired  = errors.New("otp: entry expired")
)

// Clock returns the current time. Stores use it to stamp and check expiry.
type Clock func() time.Time

// Entry is a pending code and the moment it stops being valid.
type Entry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store holds at most one live entry per email.
type Store interface {
	// Put records code for email, replacing any earlier entry.
	Put(ctx context.Context, email, code string, ttl time.Duration) error
	// Take returns the entry without removing it.
	Take(ctx context.Context, email string) (Entry, error)
	// Consume removes the entry. Removing a missing entry is not an error.
	Consume(ctx context.Context, email string) error
}
