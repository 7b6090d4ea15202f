package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapreel/backend/internal/models"
)

// MemoryVideoRepository is an in-process video store for local development
// and tests. Every operation runs under a single mutex.
type MemoryVideoRepository struct {
	mu     sync.Mutex
	videos map[string]models.Video

	// NowFunc assigns creation timestamps; defaults to time.Now.
	NowFunc func() time.Time
}

// NewMemoryVideoRepository returns an empty store.
func NewMemoryVideoRepository() *MemoryVideoRepository {
	return &MemoryVideoRepository{videos: make(map[string]models.Video)}
}

func (r *MemoryVideoRepository) now() time.Time {
	if r.NowFunc != nil {
		return r.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func (r *MemoryVideoRepository) Create(_ context.Context, video models.Video) (models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	video.ID = uuid.NewString()
	video.Timestamp = r.now()
	video.Likes = 0
	video.LikedBy = []string{}
	video.Views = 0
	r.videos[video.ID] = video
	return cloneVideo(video), nil
}

func (r *MemoryVideoRepository) Get(_ context.Context, id string) (models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	return cloneVideo(v), nil
}

func (r *MemoryVideoRepository) List(_ context.Context, pageSize int, cursor string) (models.VideoPage, error) {
	pageSize = clampPageSize(pageSize)
	after, err := decodeCursor(cursor)
	if err != nil {
		return models.VideoPage{}, err
	}

	r.mu.Lock()
	sorted := r.sortedLocked(func(v models.Video) bool { return after == nil || after.after(v) })
	r.mu.Unlock()

	if len(sorted) > pageSize+1 {
		sorted = sorted[:pageSize+1]
	}
	return buildPage(sorted, pageSize), nil
}

func (r *MemoryVideoRepository) ListByUser(_ context.Context, userID string, limit int) ([]models.Video, error) {
	r.mu.Lock()
	sorted := r.sortedLocked(func(v models.Video) bool { return v.UserID == userID })
	r.mu.Unlock()

	if limit = clampPageSize(limit); len(sorted) > limit {
		sorted = sorted[:limit]
	}
	if sorted == nil {
		sorted = []models.Video{}
	}
	return sorted, nil
}

// sortedLocked returns matching records newest-first with id as tie-breaker.
func (r *MemoryVideoRepository) sortedLocked(keep func(models.Video) bool) []models.Video {
	var out []models.Video
	for _, v := range r.videos {
		if keep(v) {
			out = append(out, cloneVideo(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return strings.Compare(out[i].ID, out[j].ID) > 0
	})
	return out
}

func (r *MemoryVideoRepository) Update(_ context.Context, id string, update models.VideoUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return ErrNotFound
	}
	if update.PosterName != nil {
		v.PosterName = *update.PosterName
	}
	if update.ThumbnailURL != nil {
		v.ThumbnailURL = *update.ThumbnailURL
	}
	if update.Duration != nil {
		v.Duration = *update.Duration
	}
	r.videos[id] = v
	return nil
}

func (r *MemoryVideoRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[id]; !ok {
		return ErrNotFound
	}
	delete(r.videos, id)
	return nil
}

func (r *MemoryVideoRepository) ToggleLike(_ context.Context, id, userID string) (models.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return models.LikeResult{}, ErrNotFound
	}
	v.Normalize()

	liked := !v.LikedByUser(userID)
	if liked {
		v.LikedBy = append(v.LikedBy, userID)
		v.Likes++
	} else {
		kept := v.LikedBy[:0:0]
		for _, member := range v.LikedBy {
			if member != userID {
				kept = append(kept, member)
			}
		}
		v.LikedBy = kept
		if v.Likes > 0 {
			v.Likes--
		}
	}
	r.videos[id] = v
	return models.LikeResult{Likes: v.Likes, Liked: liked}, nil
}

func (r *MemoryVideoRepository) IncrementViews(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.Views++
	r.videos[id] = v
	return nil
}

// Put stores a record verbatim, keeping its id, timestamp and counters.
// Used to load fixtures.
func (r *MemoryVideoRepository) Put(video models.Video) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[video.ID] = cloneVideo(video)
}

func cloneVideo(v models.Video) models.Video {
	v.LikedBy = append([]string{}, v.LikedBy...)
	v.Normalize()
	return v
}

var _ VideoRepository = (*MemoryVideoRepository)(nil)
