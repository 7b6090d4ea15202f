package handlers

import (
	"context"

	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/models"
)

// IdentityService captures the account operations required by the auth handlers.
type IdentityService interface {
	SignUp(ctx context.Context, email, password, name string) (models.User, error)
	SignIn(ctx context.Context, email, password string) (models.User, error)
	SignInWithGoogle(ctx context.Context, code, redirectURI string) (models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
}

// SessionManager issues, refreshes and verifies authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, string, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
	Revoke(ctx context.Context, refreshToken string)
	RevokeAll(ctx context.Context, userID string) error
}

// MediaService stores uploads and derives rendition URLs.
type MediaService interface {
	Upload(ctx context.Context, req media.UploadRequest) (string, error)
	Delete(ctx context.Context, reference string) error
	Thumbnail(reference string, opts media.PosterOptions) (string, error)
	Still(reference string, opts media.ThumbnailOptions) (string, error)
	Responsive(reference string, screenWidth int) (string, error)
	Probe(ctx context.Context, reference string) (media.ProbeResult, error)
	Owns(reference, userID string) bool
}

// VideoStore captures persistence for video records.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) (models.Video, error)
	Get(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, pageSize int, cursor string) (models.VideoPage, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error)
	Update(ctx context.Context, id string, update models.VideoUpdate) error
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id, userID string) (models.LikeResult, error)
	IncrementViews(ctx context.Context, id string) error
}

// LikeObserver is told the outcome of every like toggle.
type LikeObserver interface {
	ObserveLike(liked bool)
}
