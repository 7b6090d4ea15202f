package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/snapreel/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// SessionStore persists issued refresh tokens so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, refreshToken string) error
	DeleteForUser(ctx context.Context, userID string) error
}

// Session represents a refresh token issued to a user.
type Session struct {
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
}

// Manager issues JWT access tokens and rotates opaque refresh tokens.
type Manager struct {
	access     *AccessTokens
	refreshTTL time.Duration
	store      SessionStore

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewManager constructs a Manager. Refresh tokens live for refreshTTL in store.
func NewManager(access *AccessTokens, refreshTTL time.Duration, store SessionStore) *Manager {
	if access == nil || store == nil {
		panic("auth: access tokens and session store must not be nil")
	}
	return &Manager{access: access, refreshTTL: refreshTTL, store: store}
}

// Issue creates a new pair of access and refresh tokens for the provided user identifier.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := m.now()
	accessToken, accessExpires, err := m.access.Sign(userID, now)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refreshToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, err
	}

	tokens := models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	if err := m.store.Save(ctx, Session{
		RefreshToken: refreshToken,
		UserID:       userID,
		ExpiresAt:    tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Refresh exchanges a refresh token for a new pair; the old token is consumed.
// The owning user id is returned alongside the tokens.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, string, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, "", ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, "", err
	}

	if m.now().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, refreshToken)
		return models.SessionTokens{}, "", ErrRefreshTokenExpired
	}

	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, "", err
	}

	tokens, err := m.Issue(ctx, session.UserID)
	return tokens, session.UserID, err
}

// Authenticate resolves a bearer access token to its user id.
func (m *Manager) Authenticate(_ context.Context, accessToken string) (string, error) {
	return m.access.Verify(accessToken)
}

// Revoke removes the provided refresh token from the active session store.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	_ = m.store.Delete(ctx, refreshToken)
}

// RevokeAll removes every refresh token held by userID.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	return m.store.DeleteForUser(ctx, userID)
}

func (m *Manager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
