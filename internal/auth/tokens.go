package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "snapreel"

// ErrInvalidAccessToken indicates a bearer token that failed verification.
var ErrInvalidAccessToken = errors.New("invalid access token")

// AccessTokens signs and verifies short-lived HS256 access tokens.
type AccessTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewAccessTokens constructs a signer using the shared secret.
func NewAccessTokens(secret []byte, ttl time.Duration) *AccessTokens {
	if len(secret) == 0 {
		panic("auth: token secret must not be empty")
	}
	return &AccessTokens{secret: secret, ttl: ttl}
}

// Sign returns a token for userID that expires ttl after now.
func (a *AccessTokens) Sign(userID string, now time.Time) (string, time.Time, error) {
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, issuer, and expiry, returning the subject.
func (a *AccessTokens) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidAccessToken
	}
	return claims.Subject, nil
}
