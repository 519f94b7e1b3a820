// Package app opens a workspace: config, lock, storage, journal, logger and
// engine, in that order.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"mpproj/internal/config"
	"mpproj/internal/db"
	"mpproj/internal/engine"
	"mpproj/internal/events"
	"mpproj/internal/kv"
	"mpproj/internal/logging"
	"mpproj/internal/migrate"
	"mpproj/internal/repo"
)

// Options override values from mpproj.yml. Empty fields keep the file's.
type Options struct {
	Workspace string
	Driver    string
	LogLevel  string
	LogFormat string
	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// Workspace is an opened, locked workspace. Close releases it.
type Workspace struct {
	Dir    string
	Config *config.Config
	Engine *engine.Engine
	Log    zerolog.Logger
	Store  kv.Store
	// Events is set for the sqlite driver only.
	Events *events.Writer

	lock *flock.Flock
	db   *sql.DB
}

// Open loads config, takes the workspace lock, opens the configured store
// and loads the engine from it.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if opts.Driver != "" {
		cfg.Storage.Driver = opts.Driver
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(opts.LogOutput, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	ws := &Workspace{Dir: opts.Workspace, Config: cfg, Log: logger}
	ws.lock, err = db.Lock(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if err := ws.openStore(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	ws.Engine = engine.New(ws.Store, cfg)
	ws.Engine.SetLogger(logger)
	if ws.Events != nil {
		ws.Engine.Journal = ws.Events
	}
	if err := ws.Engine.Load(ctx); err != nil {
		ws.Close()
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	logger.Debug().Str("workspace", opts.Workspace).Str("driver", cfg.Storage.Driver).Msg("workspace opened")
	return ws, nil
}

func (ws *Workspace) openStore(ctx context.Context) error {
	driver, err := kv.ParseDriver(ws.Config.Storage.Driver)
	if err != nil {
		return err
	}
	var store kv.Store
	switch driver {
	case kv.DriverMemory:
		store = kv.NewMemory()
	case kv.DriverFS:
		store, err = kv.NewFilesystem(db.KVDir(ws.Dir))
		if err != nil {
			return err
		}
	default:
		conn, err := db.Open(db.Config{Workspace: ws.Dir})
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		ws.db = conn
		if err := migrate.Migrate(conn); err != nil {
			return err
		}
		store = repo.Repo{DB: conn}
		ws.Events = &events.Writer{DB: conn}
	}
	ws.Store, err = kv.WithQuota(ctx, store, ws.Config.Storage.QuotaBytes)
	return err
}

// Close releases the store and the workspace lock.
func (ws *Workspace) Close() error {
	var firstErr error
	if ws.Store != nil {
		if err := ws.Store.Close(); err != nil {
			firstErr = err
		}
	} else if ws.db != nil {
		if err := ws.db.Close(); err != nil {
			firstErr = err
		}
	}
	if ws.lock != nil {
		if err := ws.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
