// Package kvstore provides string-blob key-value storage backends.
package kvstore

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNotFound           = errors.New("key not found")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store is a string-blob key-value store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key without expiry.
	Set(ctx context.Context, key, value string) error
	// Del removes key. Removing a missing key is not an error.
	Del(ctx context.Context, key string) error
	// Close releases connections held by the store.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend  string
	Addr     string
	Password string
	DB       int
}

// New creates the store selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(ctx, cfg.Addr, cfg.Password, cfg.DB)
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "backend %q", cfg.Backend)
	}
}
