package repositories

import (
	"context"

	"github.com/snapreel/backend/internal/models"
)

// DefaultPageSize is used when a caller does not request a page size.
const DefaultPageSize = 10

// MaxPageSize bounds a single page request.
const MaxPageSize = 50

// VideoRepository is the document store for video records.
type VideoRepository interface {
	// Create inserts the record and returns it with the store-assigned ID and timestamp.
	Create(ctx context.Context, video models.Video) (models.Video, error)
	Get(ctx context.Context, id string) (models.Video, error)
	// List returns one page ordered newest-first, continuing after cursor when set.
	List(ctx context.Context, pageSize int, cursor string) (models.VideoPage, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error)
	Update(ctx context.Context, id string, update models.VideoUpdate) error
	Delete(ctx context.Context, id string) error
	// ToggleLike flips userID's membership in the record's likedBy set and
	// adjusts the likes counter in a single atomic operation.
	ToggleLike(ctx context.Context, id, userID string) (models.LikeResult, error)
	IncrementViews(ctx context.Context, id string) error
}

func clampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
