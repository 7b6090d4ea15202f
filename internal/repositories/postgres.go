package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/snapreel/backend/internal/db"
	"github.com/snapreel/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for identity accounts.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, display_name, password_hash, COALESCE(google_sub, ''), created_at, updated_at`

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, display_name, password_hash, google_sub, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
    `, user.ID, user.Email, user.DisplayName, user.Password, user.GoogleSub, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByGoogleSubject fetches the user linked to a Google account subject.
func (r *PostgresUserRepository) FindByGoogleSubject(ctx context.Context, subject string) (models.User, error) {
	if subject == "" {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, "google_sub", subject)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// column is one of a fixed set chosen by the callers above.
	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Password, &user.GoogleSub, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, display_name = $3, password_hash = $4, google_sub = NULLIF($5, ''), updated_at = $6
        WHERE id = $1
    `, user.ID, user.Email, user.DisplayName, user.Password, user.GoogleSub, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresVideoRepository stores video records in PostgreSQL.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, video_url, poster_name, user_id, created_at, likes, liked_by, views,
        thumbnail_url, duration, width, height, aspect_ratio, is_landscape`

func scanVideo(row pgx.Row) (models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.VideoURL, &v.PosterName, &v.UserID, &v.Timestamp, &v.Likes, &v.LikedBy, &v.Views,
		&v.ThumbnailURL, &v.Duration, &v.Width, &v.Height, &v.AspectRatio, &v.IsLandscape)
	if err != nil {
		return models.Video{}, err
	}
	v.Timestamp = v.Timestamp.UTC()
	v.Normalize()
	return v, nil
}

// Create inserts a record; the database assigns its ID and creation timestamp.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO videos (video_url, poster_name, user_id, thumbnail_url, duration, width, height, aspect_ratio, is_landscape)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+videoColumns,
		video.VideoURL, video.PosterName, video.UserID, video.ThumbnailURL, video.Duration,
		video.Width, video.Height, video.AspectRatio, video.IsLandscape)

	created, err := scanVideo(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Video{}, ErrConflict
		}
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return created, nil
}

// Get loads a single record.
func (r *PostgresVideoRepository) Get(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	v, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	return v, nil
}

// List returns a newest-first page using (created_at, id) keyset pagination.
func (r *PostgresVideoRepository) List(ctx context.Context, pageSize int, cursor string) (models.VideoPage, error) {
	pageSize = clampPageSize(pageSize)
	after, err := decodeCursor(cursor)
	if err != nil {
		return models.VideoPage{}, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoPage{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var rows pgx.Rows
	if after == nil {
		rows, err = conn.Query(ctx, `
            SELECT `+videoColumns+`
            FROM videos
            ORDER BY created_at DESC, id DESC
            LIMIT $1
        `, pageSize+1)
	} else {
		rows, err = conn.Query(ctx, `
            SELECT `+videoColumns+`
            FROM videos
            WHERE (created_at, id) < ($2::TIMESTAMPTZ, $3::TEXT)
            ORDER BY created_at DESC, id DESC
            LIMIT $1
        `, pageSize+1, after.Timestamp, after.ID)
	}
	if err != nil {
		return models.VideoPage{}, fmt.Errorf("query videos: %w", err)
	}

	videos, err := collectVideos(rows)
	if err != nil {
		return models.VideoPage{}, err
	}
	return buildPage(videos, pageSize), nil
}

// ListByUser returns the newest records posted by one user.
func (r *PostgresVideoRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `, userID, clampPageSize(limit))
	if err != nil {
		return nil, fmt.Errorf("query user videos: %w", err)
	}
	videos, err := collectVideos(rows)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, nil
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// Update applies the non-nil fields of update.
func (r *PostgresVideoRepository) Update(ctx context.Context, id string, update models.VideoUpdate) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET poster_name = COALESCE($2, poster_name),
            thumbnail_url = COALESCE($3, thumbnail_url),
            duration = COALESCE($4, duration)
        WHERE id = $1
    `, id, update.PosterName, update.ThumbnailURL, update.Duration)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleLike flips membership and adjusts the counter in one UPDATE. Both
// CASE expressions read the pre-update row.
func (r *PostgresVideoRepository) ToggleLike(ctx context.Context, id, userID string) (models.LikeResult, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var result models.LikeResult
	err = conn.QueryRow(ctx, `
        UPDATE videos
        SET liked_by = CASE
                WHEN $2::TEXT = ANY(liked_by) THEN array_remove(liked_by, $2::TEXT)
                ELSE array_append(liked_by, $2::TEXT)
            END,
            likes = CASE
                WHEN $2::TEXT = ANY(liked_by) THEN GREATEST(likes - 1, 0)
                ELSE likes + 1
            END
        WHERE id = $1
        RETURNING likes, $2::TEXT = ANY(liked_by)
    `, id, userID).Scan(&result.Likes, &result.Liked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LikeResult{}, ErrNotFound
		}
		return models.LikeResult{}, fmt.Errorf("toggle like: %w", err)
	}
	return result, nil
}

// IncrementViews bumps the view counter by one.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
