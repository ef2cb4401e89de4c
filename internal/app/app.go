// Package app resolves a workspace into a ready engine: config, logger,
// database and schema.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"demandas/internal/config"
	"demandas/internal/db"
	"demandas/internal/engine"
	"demandas/internal/logger"
	"demandas/internal/migrate"
)

// Overrides take precedence over demandas.yml. Empty fields are ignored.
type Overrides struct {
	Timezone  string
	JWTSecret string
	LogLevel  string
	Quiet     bool
}

// Env is an opened workspace.
type Env struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Log       *slog.Logger
}

// Open loads the workspace config (defaults when absent), opens the database
// and applies pending migrations.
func Open(ctx context.Context, workspace string, o Overrides) (*Env, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log.File != "" && !filepath.IsAbs(cfg.Log.File) {
		cfg.Log.File = filepath.Join(workspace, cfg.Log.File)
	}
	log := logger.New(cfg.Log)

	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.Path(workspace), err)
	}
	log.Debug("workspace opened", "workspace", workspace, "timezone", cfg.Calendar.Timezone)
	return &Env{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    engine.New(conn, cfg, log),
		Log:       log,
	}, nil
}

// Close releases the database.
func (e *Env) Close() error {
	if e == nil || e.DB == nil {
		return nil
	}
	return e.DB.Close()
}

func applyOverrides(cfg *config.Config, o Overrides) {
	if o.Timezone != "" {
		cfg.Calendar.Timezone = o.Timezone
	}
	if o.JWTSecret != "" {
		cfg.Auth.JWTSecret = o.JWTSecret
	}
	if o.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(o.LogLevel)
	}
	if o.Quiet {
		cfg.Log.Console = false
	}
}

// InitResult reports what Init created.
type InitResult struct {
	ConfigPath    string `json:"config_path"`
	ConfigCreated bool   `json:"config_created"`
	DBPath        string `json:"db_path"`
	SchemaVersion int    `json:"schema_version"`
}

// Init writes a default demandas.yml unless one exists (or force is set) and
// migrates the database.
func Init(ctx context.Context, workspace string, force bool) (InitResult, error) {
	res := InitResult{ConfigPath: config.Path(workspace), DBPath: db.Path(workspace)}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return res, err
	}
	_, statErr := os.Stat(res.ConfigPath)
	switch {
	case os.IsNotExist(statErr) || force:
		if err := os.WriteFile(res.ConfigPath, []byte(config.GenerateDefault()), 0o644); err != nil {
			return res, err
		}
		res.ConfigCreated = true
	case statErr != nil:
		return res, statErr
	}
	if _, err := config.Load(workspace); err != nil {
		return res, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return res, err
	}
	defer conn.Close()
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		return res, err
	}
	v, err := migrate.Current(ctx, conn)
	if err != nil {
		return res, err
	}
	res.SchemaVersion = v
	return res, nil
}
