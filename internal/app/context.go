package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"pairwise/internal/config"
	"pairwise/internal/db"
	"pairwise/internal/engine"
	"pairwise/internal/metrics"
	"pairwise/internal/migrate"
)

// Options tune Bootstrap.
type Options struct {
	Workspace string
	// Config overrides the workspace's pairwise.yml when set.
	Config  *config.Config
	Logger  *zap.Logger
	Metrics metrics.Collector
}

// ResolveConfig loads pairwise.yml from the workspace, falling back to the
// built-in defaults when the file is absent.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("pairwise")
	}
	return cfg, nil
}

// Bootstrap opens and migrates the workspace database and returns an engine
// with its content catalog and token cursor restored. The caller closes the
// returned db.
func Bootstrap(ctx context.Context, opts Options) (engine.Engine, *sql.DB, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = ResolveConfig(opts.Workspace); err != nil {
			return engine.Engine{}, nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	if opts.Logger != nil {
		eng.Log = opts.Logger
	}
	if opts.Metrics != nil {
		eng.Metrics = opts.Metrics
	}
	if err := eng.Restore(ctx); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	return eng, conn, nil
}
