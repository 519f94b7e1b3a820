// Package repo is the SQLite-backed kv.Store. The schema comes from
// internal/migrate.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mpproj/internal/kv"
)

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

// ErrNotFound aliases kv.ErrNotFound so callers can match either.
var ErrNotFound = kv.ErrNotFound

var _ kv.Store = Repo{}

func (r Repo) now() string {
	if r.Now != nil {
		return r.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func (r Repo) Driver() kv.Driver { return kv.DriverSQLite }

func (r Repo) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (r Repo) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO kv(key,value,updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, key, value, r.now())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r Repo) Delete(ctx context.Context, key string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix. substr compares bytes, so prefixes
// containing LIKE wildcards match literally.
func (r Repo) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT key FROM kv WHERE substr(key,1,length(?))=? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the underlying database.
func (r Repo) Close() error {
	return r.DB.Close()
}

// UpdatedAt reports when key was last written.
func (r Repo) UpdatedAt(ctx context.Context, key string) (string, error) {
	var ts string
	err := r.DB.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key=?`, key).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return ts, err
}
