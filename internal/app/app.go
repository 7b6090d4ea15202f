package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/snapreel/backend/internal/config"
	"github.com/snapreel/backend/internal/handlers"
	"github.com/snapreel/backend/internal/httpserver"
	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/middleware"
)

const usage = "expected command: serve, migrate, seed, signup, post, or feed"

// Run bootstraps the SnapReel binary.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return runMigrations(ctx, cfg, args[1:])
	case "seed":
		return runSeed(ctx, cfg, args[1:])
	case "signup":
		return runSignUp(ctx, cfg, args[1:])
	case "post":
		return runPost(ctx, cfg, args[1:])
	case "feed":
		return runFeed(ctx, cfg, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	deps, cleanup, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(context.Background()); err != nil {
			logger.Warn("release dependencies", "error", err)
		}
	}()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	srv := httpserver.New(cfg.AppPort, middleware.RequestLogger(logger)(mux))
	logger.Info("starting http server", "port", cfg.AppPort, "video_store", cfg.VideoStore, "object_store", cfg.ObjectStore.Driver)
	return srv.ListenAndRun(ctx)
}
