package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionTokenTTL = 7 * 24 * time.Hour
	ResetTokenTTL   = 15 * time.Minute

	PurposePasswordReset = "password_reset"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload. Session tokens carry no purpose.
type Claims struct {
	UserID  string `json:"userId"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// IsSession reports whether the token may authenticate API requests.
func (c *Claims) IsSession() bool {
	return c.Purpose == ""
}

// TokenIssuer signs and parses HS256 tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret, now: time.Now}
}

// Issue signs a token for userID that expires after ttl.
func (t *TokenIssuer) Issue(userID, purpose string, ttl time.Duration) (string, time.Time, error) {
	return t.IssueWithID(userID, purpose, uuid.NewString(), ttl)
}

// IssueWithID is Issue with a caller-chosen jti, for tokens whose use is
// tracked server-side.
func (t *TokenIssuer) IssueWithID(userID, purpose, id string, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
