package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/types"
)

// RedisStore persists each session as a JSON document under a prefixed key.
// Updates run inside WATCH so the version check and the write are one
// atomic compare-and-swap.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore connects to Redis with the given configuration.
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "webpilot:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		logger:    logger.With(zap.String("component", "redis_store")),
	}, nil
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + "session:" + id
}

// Create persists a new session. Fails if the key already exists.
func (s *RedisStore) Create(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(sess.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// Get retrieves a session by (tenant, id).
func (s *RedisStore) Get(ctx context.Context, tenantID, id string) (*types.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess types.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Update applies a WATCH-guarded compare-and-swap on the session document.
func (s *RedisStore) Update(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}
	key := s.key(sess.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var current types.Session
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if current.TenantID != sess.TenantID {
			return ErrNotFound
		}
		if current.Version != sess.Version {
			return ErrVersionConflict
		}

		next := sess.Clone()
		next.Version++
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}
	sess.Version++
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ SessionStore = (*RedisStore)(nil)
