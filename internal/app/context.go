// Package app wires a workspace into a ready engine for one invocation.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"stageline/internal/config"
	"stageline/internal/db"
	"stageline/internal/domain"
	"stageline/internal/engine"
	"stageline/internal/migrate"
	"stageline/internal/tcr"
)

// Options select the workspace and per-invocation overrides.
type Options struct {
	Workspace        string
	FailureThreshold int
	Logger           *slog.Logger
}

// Context holds everything a command needs. Close releases the database.
type Context struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Logger    *slog.Logger
}

// LoadConfig reads stageline.yml (or the defaults when absent) and applies overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, domain.UsageError{Msg: err.Error()}
	}
	if opts.FailureThreshold > 0 {
		cfg.TCR.FailureThreshold = opts.FailureThreshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.UsageError{Msg: fmt.Sprintf("invalid config %s: %v", config.Path(opts.Workspace), err)}
	}
	return cfg, nil
}

// Open prepares the state directory, migrates the database and builds the engine.
func Open(ctx context.Context, opts Options) (*Context, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, domain.Persistence("prepare workspace", err)
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, domain.Persistence("open database", err)
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, domain.Persistence("migrate database", err)
	}
	logger.Debug("database ready", "path", db.Path(opts.Workspace), "schema_version", version)

	e := engine.New(conn, cfg)
	e.Logger = logger
	return &Context{
		Workspace: opts.Workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    e,
		Logger:    logger,
	}, nil
}

// Checker returns the git-backed check pipeline for the workspace.
func (c *Context) Checker() tcr.Checker {
	return tcr.NewChecker(c.Workspace, c.Config, c.Logger)
}

// StateStore returns the failure-state store of the workspace.
func (c *Context) StateStore() tcr.StateStore {
	return tcr.NewFileStore(c.Workspace)
}

func (c *Context) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
