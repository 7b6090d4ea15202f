package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/snapreel/backend/internal/models"
)

func TestMemoryVideoRepositoryContract(t *testing.T) {
	runVideoRepositoryContract(t, func(t *testing.T) VideoRepository {
		repo := NewMemoryVideoRepository()
		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		repo.NowFunc = func() time.Time {
			now = now.Add(time.Second)
			return now
		}
		return repo
	})
}

func TestMemoryVideoRepositoryTiedTimestamps(t *testing.T) {
	repo := NewMemoryVideoRepository()
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.NowFunc = func() time.Time { return fixed }

	for i := 0; i < 5; i++ {
		mustCreate(t, repo, "same-second")
	}

	first, err := repo.List(context.Background(), 3, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := repo.List(context.Background(), 3, first.NextCursor)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(first.Videos) != 3 || len(second.Videos) != 2 || second.NextCursor != "" {
		t.Fatalf("unexpected page sizes %d/%d", len(first.Videos), len(second.Videos))
	}
	for _, a := range first.Videos {
		for _, b := range second.Videos {
			if a.ID == b.ID {
				t.Fatalf("record %s appears on both pages", a.ID)
			}
		}
	}
}

func TestMemoryToggleLikeFloorsAtZero(t *testing.T) {
	repo := NewMemoryVideoRepository()
	repo.Put(models.Video{ID: "v1", UserID: "owner", Likes: 0, LikedBy: []string{"viewer"}})

	res, err := repo.ToggleLike(context.Background(), "v1", "viewer")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res.Likes != 0 || res.Liked {
		t.Fatalf("expected floor at zero and unliked, got %+v", res)
	}
}

func TestMemoryGetNormalizesMalformedRecords(t *testing.T) {
	repo := NewMemoryVideoRepository()
	repo.Put(models.Video{ID: "v1", Likes: -3})

	v, err := repo.Get(context.Background(), "v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Likes != 0 || v.LikedBy == nil {
		t.Fatalf("expected defaults applied, got %+v", v)
	}
}

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	alice := models.User{ID: "u1", Email: "alice@example.com"}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, models.User{ID: "u2", Email: "ALICE@example.com"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	alice.GoogleSub = "google-123"
	if err := repo.Update(ctx, alice); err != nil {
		t.Fatalf("update: %v", err)
	}
	found, err := repo.FindByGoogleSubject(ctx, "google-123")
	if err != nil || found.ID != "u1" {
		t.Fatalf("expected to find by google subject, got %+v (%v)", found, err)
	}
	if _, err := repo.FindByGoogleSubject(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty subject to miss, got %v", err)
	}
	if err := repo.Update(ctx, models.User{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
