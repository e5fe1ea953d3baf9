// Package store provides persistent session storage with optimistic
// concurrency control.
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - Database: relational storage via GORM (sqlite, postgres, mysql)
//   - Redis: WATCH-based compare-and-swap on a JSON document
//   - Mongo: filtered ReplaceOne compare-and-swap
//
// Every Update is a compare-and-swap on Session.Version: the write succeeds
// only if the stored version still equals the version the caller read, and on
// success the version is bumped. Reads return copies; callers never share
// store-internal state.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/types"
)

// Common errors
var (
	ErrNotFound        = errors.New("session not found")
	ErrAlreadyExists   = errors.New("session already exists")
	ErrVersionConflict = errors.New("session version conflict")
	ErrStoreClosed     = errors.New("store is closed")
	ErrInvalidInput    = errors.New("invalid input")
)

// Backend identifies a storage backend type.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendDatabase Backend = "database"
	BackendRedis    Backend = "redis"
	BackendMongo    Backend = "mongo"
)

// SessionStore is the persistence collaborator of the orchestrator. All
// lookups are keyed by (tenant, session id); a tenant mismatch is
// indistinguishable from absence.
type SessionStore interface {
	// Create persists a new session. ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, s *types.Session) error

	// Get returns a copy of the session, or ErrNotFound.
	Get(ctx context.Context, tenantID, id string) (*types.Session, error)

	// Update writes the session if the stored version matches s.Version,
	// then increments s.Version. ErrVersionConflict on mismatch.
	Update(ctx context.Context, s *types.Session) error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (SessionStore, error) {
	switch Backend(cfg.Backend) {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendDatabase:
		return NewDatabaseStore(cfg.Database, logger)
	case BackendRedis:
		return NewRedisStore(cfg.Redis, logger)
	case BackendMongo:
		return NewMongoStore(ctx, cfg.Mongo, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
