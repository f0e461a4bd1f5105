// Package otp issues and verifies the six-digit one-time codes used for
// registration and password reset. Pending codes live in a Store keyed by
// purpose and email.
package otp

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("otp entry not found")

// Purposes
const (
	PurposeRegistration  = "registration"
	PurposePasswordReset = "password_reset"
	// PurposeResetGrant tracks reset tokens that have not been redeemed.
	PurposeResetGrant = "reset_grant"
)

// Entry is one pending code.
type Entry struct {
	Secret   string            `json:"secret"`
	IssuedAt time.Time         `json:"issued_at"`
	Purpose  string            `json:"purpose"`
	Payload  map[string]string `json:"payload,omitempty"`
}

// Store holds pending entries until they expire. Consume and AddAttempt
// must be atomic with respect to each other and to concurrent callers.
type Store interface {
	// Put replaces any entry under key and resets its attempt count.
	Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Get(ctx context.Context, key string) (Entry, error)
	// Consume removes and returns the entry only if it still carries secret
	// and has fewer than MaxAttempts failed attempts. Exactly one of several
	// concurrent callers gets it.
	Consume(ctx context.Context, key, secret string) (Entry, error)
	// AddAttempt counts one failed verification and returns the new total.
	AddAttempt(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
}

// Key builds the store key for a purpose and email.
func Key(purpose, email string) string {
	return purpose + ":" + strings.ToLower(strings.TrimSpace(email))
}
