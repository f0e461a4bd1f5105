package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/metrics"
	"go.uber.org/zap"
)

// MaxAttempts is the number of wrong codes an entry tolerates.
const MaxAttempts = 5

var (
	ErrInvalidCode     = errors.New("invalid or expired OTP")
	ErrTooManyAttempts = errors.New("too many OTP attempts")
)

// Manager ties a Generator to a Store.
type Manager struct {
	store     Store
	generator *Generator
	now       func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{
		store:     store,
		generator: NewGenerator(),
		now:       time.Now,
	}
}

// Issue replaces any pending entry for (purpose, email) and returns the new
// code. Payload travels with the entry and comes back from Verify.
func (m *Manager) Issue(ctx context.Context, purpose, email string, payload map[string]string) (string, error) {
	entry, code, err := m.generator.NewEntry(purpose, email, m.now())
	if err != nil {
		return "", err
	}
	entry.Payload = payload
	if err := m.store.Put(ctx, Key(purpose, email), entry, Validity); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	metrics.RecordOTPIssued(purpose)
	return code, nil
}

// Pending returns the current entry without consuming it.
func (m *Manager) Pending(ctx context.Context, purpose, email string) (Entry, error) {
	return m.store.Get(ctx, Key(purpose, email))
}

// Verify consumes the entry when code matches. A wrong code counts as an
// attempt; after MaxAttempts the entry is discarded. Concurrent calls with
// the right code succeed at most once.
func (m *Manager) Verify(ctx context.Context, purpose, email, code string) (Entry, error) {
	key := Key(purpose, email)
	entry, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordOTPVerification(purpose, "missing")
		return Entry{}, ErrInvalidCode
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load otp: %w", err)
	}

	if m.generator.Validate(code, entry, m.now()) {
		consumed, err := m.store.Consume(ctx, key, entry.Secret)
		if errors.Is(err, ErrNotFound) {
			metrics.RecordOTPVerification(purpose, "missing")
			return Entry{}, ErrInvalidCode
		}
		if err != nil {
			return Entry{}, fmt.Errorf("consume otp: %w", err)
		}
		metrics.RecordOTPVerification(purpose, "ok")
		return consumed, nil
	}

	attempts, err := m.store.AddAttempt(ctx, key)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordOTPVerification(purpose, "missing")
		return Entry{}, ErrInvalidCode
	}
	if err != nil {
		return Entry{}, fmt.Errorf("record otp attempt: %w", err)
	}
	if attempts >= MaxAttempts {
		if err := m.store.Delete(ctx, key); err != nil {
			logger.Log.Warn("Failed to discard exhausted OTP", zap.String("purpose", purpose), zap.Error(err))
		}
		metrics.RecordOTPVerification(purpose, "exhausted")
		return Entry{}, ErrTooManyAttempts
	}
	metrics.RecordOTPVerification(purpose, "mismatch")
	return Entry{}, ErrInvalidCode
}

// Grant records a single-use grant under id for ttl. It carries no code;
// Redeem is the only way to consume it.
func (m *Manager) Grant(ctx context.Context, purpose, id string, ttl time.Duration) error {
	entry := Entry{Secret: id, IssuedAt: m.now().UTC(), Purpose: purpose}
	if err := m.store.Put(ctx, Key(purpose, id), entry, ttl); err != nil {
		return fmt.Errorf("store grant: %w", err)
	}
	return nil
}

// Redeem consumes the grant under id. A second redeem, or one after expiry,
// returns ErrInvalidCode.
func (m *Manager) Redeem(ctx context.Context, purpose, id string) error {
	_, err := m.store.Consume(ctx, Key(purpose, id), id)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("redeem grant: %w", err)
	}
	return nil
}

// Discard drops any pending entry.
func (m *Manager) Discard(ctx context.Context, purpose, email string) error {
	return m.store.Delete(ctx, Key(purpose, email))
}
