package otp

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Validity is how long an issued code stays usable.
	Validity = 10 * time.Minute
	issuer   = "Sports Social"
)

// Generator derives codes from a per-entry TOTP secret. The TOTP period
// equals Validity, and codes are always computed at the entry's issue time,
// so a code never rolls over while it is still valid.
type Generator struct {
	opts totp.ValidateOpts
}

func NewGenerator() *Generator {
	return &Generator{
		opts: totp.ValidateOpts{
			Period:    uint(Validity / time.Second),
			Skew:      0,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// NewEntry creates a fresh secret for account and returns the entry along
// with its code.
func (g *Generator) NewEntry(purpose, account string, issuedAt time.Time) (Entry, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      g.opts.Period,
		Digits:      g.opts.Digits,
		Algorithm:   g.opts.Algorithm,
		SecretSize:  20,
	})
	if err != nil {
		return Entry{}, "", fmt.Errorf("generate otp secret: %w", err)
	}

	entry := Entry{
		Secret:   key.Secret(),
		IssuedAt: issuedAt.UTC(),
		Purpose:  purpose,
	}
	code, err := totp.GenerateCodeCustom(entry.Secret, entry.IssuedAt, g.opts)
	if err != nil {
		return Entry{}, "", fmt.Errorf("generate otp code: %w", err)
	}
	return entry, code, nil
}

// Validate reports whether code matches entry and now is still inside the
// validity window.
func (g *Generator) Validate(code string, entry Entry, now time.Time) bool {
	if len(code) != g.opts.Digits.Length() {
		return false
	}
	if now.Sub(entry.IssuedAt) > Validity || now.Before(entry.IssuedAt.Add(-time.Minute)) {
		return false
	}
	ok, err := totp.ValidateCustom(code, entry.Secret, entry.IssuedAt, g.opts)
	return err == nil && ok
}
