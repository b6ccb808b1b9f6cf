package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	coreconfig "github.com/m3rciful/tgscreens/core/config"
	coredatabase "github.com/m3rciful/tgscreens/core/database"
	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/persistence"
	"github.com/m3rciful/tgscreens/core/persistence/redisstore"
	"github.com/m3rciful/tgscreens/core/persistence/sqlstore"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config
	// MigrationsDir holds the store schema for the postgres backend.
	MigrationsDir string

	LoggerInit func(*coreconfig.Config) error
	// OpenStore replaces the store selected by persistence.backend.
	OpenStore func(ctx context.Context, cfg coreconfig.PersistenceConfig) (persistence.Store, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Backend *persistence.Backend
}

// Run initializes the logger, opens the configured store and wraps it in a
// persistence backend.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	open := opts.OpenStore
	if open == nil {
		open = func(ctx context.Context, cfg coreconfig.PersistenceConfig) (persistence.Store, error) {
			return OpenStore(ctx, cfg, opts.MigrationsDir)
		}
	}
	pcfg := opts.Config.Persistence
	store, err := open(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: persistence initialization failed: %w", err)
	}

	backend, err := persistence.New(store, persistence.Options{
		OnFlush:   pcfg.OnFlush,
		Namespace: pcfg.Namespace,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Persist.Info("persistence ready",
		slog.String("event", "persistence.ready"),
		slog.String("backend", pcfg.Backend),
		slog.Bool("on_flush", pcfg.OnFlush),
	)
	return &Result{Backend: backend}, nil
}

// OpenStore opens the store named by cfg.Backend. The postgres backend
// applies the migrations in migrationsDir first.
func OpenStore(ctx context.Context, cfg coreconfig.PersistenceConfig, migrationsDir string) (persistence.Store, error) {
	switch cfg.Backend {
	case "", coreconfig.BackendMemory:
		return persistence.NewMemoryStore(), nil
	case coreconfig.BackendRedis:
		return redisstore.Dial(ctx, cfg.Redis)
	case coreconfig.BackendPostgres:
		if err := coredatabase.RunMigrations(ctx, cfg.Postgres, migrationsDir); err != nil {
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		db, err := coredatabase.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown persistence backend %q", coreconfig.ErrImproperlyConfigured, cfg.Backend)
	}
}
