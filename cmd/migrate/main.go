package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const (
	markerPrefix = "-- +migrate "
	sectionUp    = "Up"
	sectionDown  = "Down"
)

type migration struct {
	Version string
	Path    string
}

func main() {
	mode := flag.String("mode", "up", "migration mode: up, down or status")
	dir := flag.String("dir", "./migrations", "directory holding the *.sql migrations")
	flag.Parse()

	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database, err := db.NewDatabase(cfg)
	if err != nil {
		log.Fatal("failed to connect db", zap.Error(err))
	}
	defer database.Close()

	if err := run(context.Background(), database, *mode, *dir); err != nil {
		log.Fatal("migration failed", zap.String("mode", *mode), zap.Error(err))
	}
}

func run(ctx context.Context, database *sql.DB, mode, dir string) error {
	if _, err := database.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	migrations, err := discover(dir)
	if err != nil {
		return err
	}

	switch mode {
	case "up":
		return migrateUp(ctx, database, migrations)
	case "down":
		return migrateDown(ctx, database, migrations)
	case "status":
		return status(ctx, database, migrations)
	default:
		return fmt.Errorf("unknown mode %q (use up, down or status)", mode)
	}
}

// discover lists dir's migrations oldest first; file names sort by their
// timestamp prefix.
func discover(dir string) ([]migration, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	out := make([]migration, 0, len(files))
	for _, f := range files {
		out = append(out, migration{Version: filepath.Base(f), Path: f})
	}
	return out, nil
}

func applied(ctx context.Context, database *sql.DB, version string) (bool, error) {
	var exists bool
	err := database.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
	).Scan(&exists)
	return exists, err
}

func migrateUp(ctx context.Context, database *sql.DB, migrations []migration) error {
	log := logger.FromCtx(ctx)

	for _, m := range migrations {
		done, err := applied(ctx, database, m.Version)
		if err != nil {
			return fmt.Errorf("check %s: %w", m.Version, err)
		}
		if done {
			log.Debug("skipping applied migration", zap.String("version", m.Version))
			continue
		}

		body, err := section(m.Path, sectionUp)
		if err != nil {
			return err
		}

		log.Info("applying migration", zap.String("version", m.Version))
		if err := apply(ctx, database, body, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
			return fmt.Errorf("apply %s: %w", m.Version, err)
		}
	}

	log.Info("migrations up to date", zap.Int("known", len(migrations)))
	return nil
}

func migrateDown(ctx context.Context, database *sql.DB, migrations []migration) error {
	log := logger.FromCtx(ctx)

	var last string
	err := database.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find last migration: %w", err)
	}

	idx := sort.Search(len(migrations), func(i int) bool { return migrations[i].Version >= last })
	if idx == len(migrations) || migrations[idx].Version != last {
		return fmt.Errorf("migration file not found for version %s", last)
	}

	body, err := section(migrations[idx].Path, sectionDown)
	if err != nil {
		return err
	}

	log.Info("rolling back migration", zap.String("version", last))
	if err := apply(ctx, database, body, `DELETE FROM schema_migrations WHERE version = $1`, last); err != nil {
		return fmt.Errorf("roll back %s: %w", last, err)
	}
	return nil
}

// apply runs a migration body and its bookkeeping statement in one
// transaction so a failed step leaves no partial schema behind.
func apply(ctx context.Context, database *sql.DB, body, record, version string) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if strings.TrimSpace(body) != "" {
		if _, err := tx.ExecContext(ctx, body); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return err
	}
	return tx.Commit()
}

func status(ctx context.Context, database *sql.DB, migrations []migration) error {
	for _, m := range migrations {
		done, err := applied(ctx, database, m.Version)
		if err != nil {
			return fmt.Errorf("check %s: %w", m.Version, err)
		}
		state := "pending"
		if done {
			state = "applied"
		}
		fmt.Fprintf(os.Stdout, "%-8s %s\n", state, m.Version)
	}
	return nil
}

func section(path, name string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return extractSection(string(content), name), nil
}

// extractSection returns the lines between "-- +migrate <name>" and the next
// marker.
func extractSection(content, name string) string {
	var part strings.Builder
	in := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, markerPrefix) {
			if in {
				break
			}
			in = strings.TrimSpace(strings.TrimPrefix(trimmed, markerPrefix)) == name
			continue
		}
		if in {
			part.WriteString(line)
			part.WriteByte('\n')
		}
	}
	return part.String()
}
