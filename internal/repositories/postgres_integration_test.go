package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapreel/backend/internal/auth"
	"github.com/snapreel/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("SNAPREEL_SKIP_DB_TESTS") != "" {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server (database tests will be skipped): %v\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("cockroach test server unavailable")
	}
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:          uuid.NewString(),
		Email:       "alice@example.com",
		DisplayName: "Alice",
		Password:    "secret-hash",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != user.ID || fetched.DisplayName != "Alice" || fetched.GoogleSub != "" {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	updated := user
	updated.GoogleSub = "google-sub-1"
	updated.DisplayName = "Alice B"
	updated.UpdatedAt = time.Now().UTC().Add(time.Minute)
	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("update user: %v", err)
	}

	fetched, err = repo.FindByGoogleSubject(ctx, "google-sub-1")
	if err != nil {
		t.Fatalf("find by google subject: %v", err)
	}
	if fetched.ID != user.ID || fetched.DisplayName != "Alice B" {
		t.Fatalf("expected updated fields to persist, got %+v", fetched)
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	missing := models.User{ID: uuid.NewString(), Email: "missing@example.com", UpdatedAt: time.Now().UTC()}
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "owner@example.com")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{RefreshToken: uuid.NewString(), UserID: user.ID, ExpiresAt: expires}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != session.UserID || !timesClose(loaded.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Save(ctx, auth.Session{RefreshToken: uuid.NewString(), UserID: user.ID, ExpiresAt: expires}); err != nil {
			t.Fatalf("save session: %v", err)
		}
	}
	if err := store.DeleteForUser(ctx, user.ID); err != nil {
		t.Fatalf("delete for user: %v", err)
	}
	var remaining int
	if err := testPool.QueryRow(ctx, `SELECT count(*) FROM sessions`).Scan(&remaining); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected all sessions removed, got %d", remaining)
	}
}

func TestPostgresVideoRepositoryContract(t *testing.T) {
	requireDB(t)
	runVideoRepositoryContract(t, func(t *testing.T) VideoRepository {
		resetDatabase(t)
		return NewPostgresVideoRepository(testPool)
	})
}

func TestPostgresToggleLikeFloorsAtZero(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	var id string
	err := testPool.QueryRow(ctx, `
        INSERT INTO videos (video_url, user_id, likes, liked_by)
        VALUES ('https://cdn.example.com/x.mp4', 'owner', 0, ARRAY['viewer'])
        RETURNING id
    `).Scan(&id)
	if err != nil {
		t.Fatalf("insert malformed record: %v", err)
	}

	res, err := NewPostgresVideoRepository(testPool).ToggleLike(ctx, id, "viewer")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res.Likes != 0 || res.Liked {
		t.Fatalf("expected floor at zero and unliked, got %+v", res)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE videos, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, tolerance time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
