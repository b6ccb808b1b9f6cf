package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/tgscreens/core/config"
	"github.com/m3rciful/tgscreens/core/logger"
)

// DefaultMigrationsDir is resolved against the working directory.
const DefaultMigrationsDir = "migrations"

const migrateReadyTimeout = 30 * time.Second

// RunMigrations applies all up migrations from dir, which holds the
// persistence store schema.
func RunMigrations(ctx context.Context, cfg config.PostgresConfig, dir string) error {
	if err := WaitForPostgres(ctx, DSN(cfg), migrateReadyTimeout); err != nil {
		logger.MIG.Error("db not ready", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
		return fmt.Errorf("database not ready: %w", err)
	}

	path, err := filepath.Abs(cmp.Or(dir, DefaultMigrationsDir))
	if err != nil {
		logger.MIG.Error("path resolve failed", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	files := upMigrations(path)
	logger.MIG.Debug("migrations resolved", append([]any{
		slog.String("event", "resolve"),
		slog.String("path", path),
		slog.Int("files_total", len(files)),
	}, filesPreview(files)...)...)

	m, err := migrate.New("file://"+path, URL(cfg))
	if err != nil {
		logger.MIG.Error("init failed", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	to, _, _ := m.Version()
	applied := selectApplied(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files", append([]any{
			slog.String("event", "apply"),
			slog.Int("files_total", len(applied)),
		}, filesPreview(applied)...)...)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

// upMigrations lists the *.up.sql files of dir in version order.
func upMigrations(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// parseVersion reads the numeric prefix of a migration file name.
func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// selectApplied returns the files with a version in (from, to].
func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

// filesPreview names the first few migration files for a log record.
func filesPreview(files []string) []any {
	const shown = 6
	if len(files) == 0 {
		return nil
	}
	if len(files) <= shown {
		return []any{slog.String("files_preview", strings.Join(files, ", "))}
	}
	return []any{
		slog.String("files_preview", strings.Join(files[:shown], ", ")),
		slog.Bool("files_truncated", true),
	}
}
