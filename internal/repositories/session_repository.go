package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/snapreel/backend/internal/auth"
	"github.com/snapreel/backend/internal/db"
)

// PostgresSessionStore keeps refresh tokens in the sessions table.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save upserts the session keyed by its refresh token.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (refresh_token, user_id, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (refresh_token)
        DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
    `, session.RefreshToken, session.UserID, session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Find loads a session by refresh token.
func (s *PostgresSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	session := auth.Session{RefreshToken: refreshToken}
	err = conn.QueryRow(ctx, `SELECT user_id, expires_at FROM sessions WHERE refresh_token = $1`, refreshToken).
		Scan(&session.UserID, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

// Delete removes one session.
func (s *PostgresSessionStore) Delete(ctx context.Context, refreshToken string) error {
	return s.delete(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken, true)
}

// DeleteForUser removes every session held by userID.
func (s *PostgresSessionStore) DeleteForUser(ctx context.Context, userID string) error {
	return s.delete(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID, false)
}

func (s *PostgresSessionStore) delete(ctx context.Context, query, arg string, mustExist bool) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if mustExist && tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
