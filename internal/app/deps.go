package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/snapreel/backend/internal/auth"
	"github.com/snapreel/backend/internal/config"
	"github.com/snapreel/backend/internal/db"
	"github.com/snapreel/backend/internal/handlers"
	"github.com/snapreel/backend/internal/identity"
	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/metrics"
	"github.com/snapreel/backend/internal/middleware"
	"github.com/snapreel/backend/internal/repositories"
	"github.com/snapreel/backend/internal/storage"
)

// closers releases connections in reverse order of acquisition.
type closers []func(context.Context) error

func (c closers) close(ctx context.Context) error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i](ctx))
	}
	return errors.Join(errs...)
}

// stores holds the persistence layer selected by cfg.VideoStore.
type stores struct {
	users    identity.UserStore
	sessions auth.SessionStore
	videos   handlers.VideoStore
	checks   []handlers.HealthCheck
}

func buildStores(ctx context.Context, cfg config.Config, release *closers) (stores, error) {
	if cfg.VideoStore == "memory" {
		return stores{
			users:    repositories.NewMemoryUserRepository(),
			sessions: auth.NewInMemorySessionStore(),
			videos:   repositories.NewMemoryVideoRepository(),
		}, nil
	}

	// Accounts and refresh sessions are relational under either video backend.
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	*release = append(*release, func(context.Context) error { pool.Close(); return nil })

	s := stores{
		users:    repositories.NewPostgresUserRepository(pool),
		sessions: repositories.NewPostgresSessionStore(pool),
		videos:   repositories.NewPostgresVideoRepository(pool),
		checks:   []handlers.HealthCheck{{Name: "postgres", Check: pool.Ping}},
	}
	if cfg.VideoStore != "mongo" {
		return s, nil
	}

	client, err := repositories.ConnectMongo(ctx, cfg.MongoURL)
	if err != nil {
		return stores{}, err
	}
	*release = append(*release, client.Disconnect)

	videos := repositories.NewMongoVideoRepository(client.Database(cfg.MongoDB))
	if err := videos.EnsureIndexes(ctx); err != nil {
		return stores{}, err
	}
	s.videos = videos
	s.checks = append(s.checks, handlers.HealthCheck{Name: "mongo", Check: func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}})
	return s, nil
}

// buildProber wraps ffprobe in a result cache, Redis-backed when configured.
func buildProber(ctx context.Context, cfg config.Config, m *metrics.Metrics, release *closers) (media.Prober, []handlers.HealthCheck, error) {
	base := media.NewFFProbe(cfg.FFProbePath, cfg.ProbeTimeout)
	if cfg.RedisURL == "" {
		return media.NewCachingProber(base, media.NewMemoryProbeCache(cfg.ProbeCacheTTL), m), nil, nil
	}

	rdb, err := media.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	*release = append(*release, func(context.Context) error { return rdb.Close() })

	check := handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
	return media.NewCachingProber(base, media.NewRedisProbeCache(rdb, cfg.ProbeCacheTTL), m), []handlers.HealthCheck{check}, nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup closes every connection that was opened.
func buildDependencies(ctx context.Context, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	var release closers
	fail := func(err error) (handlers.Dependencies, func(context.Context) error, error) {
		_ = release.close(context.Background())
		return handlers.Dependencies{}, nil, err
	}

	m := metrics.New()

	st, err := buildStores(ctx, cfg, &release)
	if err != nil {
		return fail(err)
	}

	prober, probeChecks, err := buildProber(ctx, cfg, m, &release)
	if err != nil {
		return fail(err)
	}

	objects, err := storage.New(ctx, cfg.ObjectStore)
	if err != nil {
		return fail(fmt.Errorf("object store: %w", err))
	}

	google, err := identity.NewGoogleProvider(ctx, cfg.Google)
	if err != nil {
		return fail(err)
	}
	var exchanger identity.GoogleExchanger
	if google != nil {
		exchanger = google
	}

	tokens := auth.NewAccessTokens([]byte(cfg.Auth.TokenSecret), cfg.Auth.AccessTTL)
	transformer := media.NewTransformer(cfg.Media.DeliveryBaseURL, cfg.Media.Folder)

	deps := handlers.Dependencies{
		Identity:      identity.NewService(st.users, exchanger),
		Sessions:      auth.NewManager(tokens, cfg.Auth.RefreshTTL, st.sessions),
		Media:         media.NewService(objects, transformer, prober, cfg.Media.Folder, m),
		Videos:        st.videos,
		Metrics:       m,
		AuthLimiter:   middleware.NewIPRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateWindow, cfg.Auth.RateLimit, 0),
		MaxUploadSize: cfg.MaxUploadSize,
		HealthChecks:  append(st.checks, probeChecks...),
	}
	return deps, release.close, nil
}
