// Package state provides persistent key-value storage with multiple backend support.
//
// Values are JSON documents. Reads return the decoded form (maps, slices,
// strings, float64), so callers convert back to their own types.
package state

import (
	"context"
)

// KV is the interface for key-value storage backends.
type KV interface {
	// Get retrieves a value. A missing key yields exists=false and no error.
	Get(ctx context.Context, key string) (interface{}, bool, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys in the store.
	Keys(ctx context.Context) ([]string, error)

	// GetAll returns a copy of all data.
	GetAll(ctx context.Context) (map[string]interface{}, error)

	// GetMany reads keys in one consistent access. Missing keys are absent
	// from the result.
	GetMany(ctx context.Context, keys ...string) (map[string]interface{}, error)

	// SetMany replaces several values in one write; either all of them are
	// stored or none are.
	SetMany(ctx context.Context, values map[string]interface{}) error

	// UpdateFunc atomically replaces a value with updateFn(current).
	// current is nil when the key is absent. Returning an error aborts the
	// update and leaves the stored value untouched.
	UpdateFunc(ctx context.Context, key string, updateFn func(current interface{}) (interface{}, error)) error

	// Close releases the backend.
	Close() error
}

// BackendType represents the storage backend type.
type BackendType string

const (
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
	BackendSQLite BackendType = "sqlite"
)

// Config configures the state store.
type Config struct {
	Backend BackendType

	// File backend
	FilePath string

	// SQLite backend
	DBPath string

	// Redis backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}
