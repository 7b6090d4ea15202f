package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapreel/backend/internal/config"
	"github.com/snapreel/backend/internal/db"
	"github.com/snapreel/backend/internal/logging"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// resolveDir anchors a relative directory at the working directory.
func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}

// listMigrations returns the .sql files of dir in apply order.
func listMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)
	return names, nil
}

func runMigrations(ctx context.Context, cfg config.Config, args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command == "down" {
		return errors.New("down migrations are not supported")
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q", command)
	}

	dir, err := resolveDir(cfg.MigrationDir)
	if err != nil {
		return err
	}
	migrations, err := listMigrations(dir)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	if command == "status" {
		for _, name := range migrations {
			mark := " "
			if _, ok := applied[name]; ok {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, name)
		}
		return nil
	}

	logger := logging.FromContext(ctx)
	pending := 0
	for _, name := range migrations {
		if _, ok := applied[name]; ok {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applyMigrationWithRetry(ctx, conn, name, string(contents)); err != nil {
			return err
		}
		logger.Info("applied migration", "name", name)
		pending++
	}
	if pending == 0 {
		logger.Info("database is up to date", "migrations", len(migrations))
	}
	return nil
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]struct{}, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}

func runSeed(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	dir, err := resolveDir(cfg.SeedDir)
	if err != nil {
		return err
	}
	name := args[0]
	if !strings.HasSuffix(name, ".sql") {
		name += "_seed.sql"
	}
	contents, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", name, err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply seed %s: %w", name, err)
	}
	logging.FromContext(ctx).Info("applied seed", "name", name)
	return nil
}

func migrationBackoff(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
	return min(backoff, migrationMaxBackoff)
}

func applyMigrationWithRetry(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	logger := logging.FromContext(ctx)
	for attempt := 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(migrationBackoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		stage, err := applyMigration(ctx, conn, name, contents)
		if err == nil {
			return nil
		}
		if shouldRetryMigration(err) && attempt < migrationMaxRetries-1 {
			logger.Warn("transient migration error", "name", name, "stage", stage, "attempt", attempt+1, "error", err)
			continue
		}
		return fmt.Errorf("%s migration %s: %w", stage, name, err)
	}
	return fmt.Errorf("apply migration %s: exceeded max retries (%d)", name, migrationMaxRetries)
}

// applyMigration runs one migration in a serializable transaction and
// reports which stage failed.
func applyMigration(ctx context.Context, conn *pgxpool.Conn, name, contents string) (string, error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return "begin", err
	}
	if _, err := tx.Exec(ctx, contents); err != nil {
		_ = tx.Rollback(ctx)
		return "apply", err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback(ctx)
		return "record", err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return "commit", err
	}
	return "", nil
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}
