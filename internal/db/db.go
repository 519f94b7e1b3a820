package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const (
	workspaceDir  = ".mpproj"
	defaultDBName = "mpproj.db"
	lockName      = "lock"
	kvDir         = "kv"
)

// ErrLocked means another process holds the workspace.
var ErrLocked = errors.New("workspace is in use by another mpp process")

type Config struct {
	Workspace string
}

func dir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir)
}

func dbPath(workspace string) string {
	return filepath.Join(dir(workspace), defaultDBName)
}

// EnsureWorkspace creates the workspace state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := dir(workspace)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database with foreign keys on. SQLite allows one
// writer, so the pool holds a single connection.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}

// KVDir is where the fs storage driver keeps its files.
func KVDir(workspace string) string {
	return filepath.Join(dir(workspace), kvDir)
}

// Lock takes the exclusive workspace lock without waiting.
func Lock(workspace string) (*flock.Flock, error) {
	path, err := EnsureWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(path, lockName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return fl, nil
}
