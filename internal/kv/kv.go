// Package kv is the local key-value store the engine persists into. It
// plays the role browser local storage plays for a web client.
package kv

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
	DriverFS     Driver = "fs"
)

// ParseDriver validates a configured driver name.
func ParseDriver(s string) (Driver, error) {
	switch Driver(s) {
	case DriverMemory, DriverSQLite, DriverFS:
		return Driver(s), nil
	case "":
		return DriverSQLite, nil
	}
	return "", errors.New("unknown storage driver " + s + " (want memory, sqlite or fs)")
}

// Store holds opaque values by string key. Get of an absent key returns
// ErrNotFound. Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Driver() Driver
	Close() error
}
