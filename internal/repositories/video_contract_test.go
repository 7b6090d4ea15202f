package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/snapreel/backend/internal/models"
)

// runVideoRepositoryContract exercises behaviour every VideoRepository must share.
func runVideoRepositoryContract(t *testing.T, newRepo func(t *testing.T) VideoRepository) {
	t.Run("create assigns identity", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(context.Background(), models.Video{
			VideoURL:   "https://cdn.example.com/a.mp4",
			PosterName: "Maya",
			UserID:     "user-1",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID == "" || created.Timestamp.IsZero() {
			t.Fatalf("expected store-assigned id and timestamp, got %+v", created)
		}
		if created.Likes != 0 || len(created.LikedBy) != 0 || created.LikedBy == nil {
			t.Fatalf("expected zero likes and empty likedBy, got %+v", created)
		}

		fetched, err := repo.Get(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if fetched.VideoURL != created.VideoURL || !fetched.Timestamp.Equal(created.Timestamp) {
			t.Fatalf("unexpected record %+v", fetched)
		}
	})

	t.Run("toggle like pairs", func(t *testing.T) {
		repo := newRepo(t)
		v := mustCreate(t, repo, "owner")

		first, err := repo.ToggleLike(context.Background(), v.ID, "viewer")
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if first != (models.LikeResult{Likes: 1, Liked: true}) {
			t.Fatalf("expected liked with one like, got %+v", first)
		}

		second, err := repo.ToggleLike(context.Background(), v.ID, "viewer")
		if err != nil {
			t.Fatalf("toggle again: %v", err)
		}
		if second != (models.LikeResult{Likes: 0, Liked: false}) {
			t.Fatalf("expected state restored, got %+v", second)
		}

		fetched, err := repo.Get(context.Background(), v.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if fetched.Likes != 0 || len(fetched.LikedBy) != 0 {
			t.Fatalf("expected original record state, got %+v", fetched)
		}

		if _, err := repo.ToggleLike(context.Background(), "missing", "viewer"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("concurrent toggles keep counter consistent", func(t *testing.T) {
		repo := newRepo(t)
		v := mustCreate(t, repo, "owner")

		const users = 16
		var wg sync.WaitGroup
		for i := 0; i < users; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user := fmt.Sprintf("user-%d", i)
				// even users like once, odd users like then unlike
				if _, err := repo.ToggleLike(context.Background(), v.ID, user); err != nil {
					t.Errorf("toggle: %v", err)
				}
				if i%2 == 1 {
					if _, err := repo.ToggleLike(context.Background(), v.ID, user); err != nil {
						t.Errorf("toggle: %v", err)
					}
				}
			}(i)
		}
		wg.Wait()

		fetched, err := repo.Get(context.Background(), v.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if fetched.Likes != users/2 || len(fetched.LikedBy) != users/2 {
			t.Fatalf("expected %d likes and members, got likes=%d likedBy=%v", users/2, fetched.Likes, fetched.LikedBy)
		}
	})

	t.Run("pages do not overlap", func(t *testing.T) {
		repo := newRepo(t)
		const total = 23
		for i := 0; i < total; i++ {
			mustCreate(t, repo, fmt.Sprintf("user-%d", i%3))
		}

		seen := map[string]bool{}
		cursor := ""
		var sizes []int
		for {
			page, err := repo.List(context.Background(), 10, cursor)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			sizes = append(sizes, len(page.Videos))
			for i, v := range page.Videos {
				if seen[v.ID] {
					t.Fatalf("record %s returned twice", v.ID)
				}
				seen[v.ID] = true
				if i > 0 && page.Videos[i-1].Timestamp.Before(v.Timestamp) {
					t.Fatalf("page not ordered newest-first")
				}
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}

		if len(seen) != total {
			t.Fatalf("expected %d distinct records got %d", total, len(seen))
		}
		if fmt.Sprint(sizes) != "[10 10 3]" {
			t.Fatalf("unexpected page sizes %v", sizes)
		}
	})

	t.Run("update delete and views", func(t *testing.T) {
		repo := newRepo(t)
		v := mustCreate(t, repo, "owner")

		name := "Renamed"
		if err := repo.Update(context.Background(), v.ID, models.VideoUpdate{PosterName: &name}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := repo.IncrementViews(context.Background(), v.ID); err != nil {
			t.Fatalf("views: %v", err)
		}
		fetched, err := repo.Get(context.Background(), v.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if fetched.PosterName != name || fetched.Views != 1 || fetched.VideoURL != v.VideoURL {
			t.Fatalf("unexpected record after update %+v", fetched)
		}

		mine, err := repo.ListByUser(context.Background(), "owner", 10)
		if err != nil || len(mine) != 1 {
			t.Fatalf("expected one user video, got %d (%v)", len(mine), err)
		}

		if err := repo.Delete(context.Background(), v.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := repo.Get(context.Background(), v.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete(context.Background(), v.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("rejects malformed cursor", func(t *testing.T) {
		repo := newRepo(t)
		if _, err := repo.List(context.Background(), 10, "%%%"); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected ErrInvalidCursor, got %v", err)
		}
	})
}

func mustCreate(t *testing.T, repo VideoRepository, userID string) models.Video {
	t.Helper()
	v, err := repo.Create(context.Background(), models.Video{
		VideoURL:   "https://cdn.example.com/" + userID + ".mp4",
		PosterName: userID,
		UserID:     userID,
	})
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	return v
}
