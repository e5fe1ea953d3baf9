package store

import (
	"context"
	"sync"

	"github.com/webpilot-ai/webpilot/types"
)

// MemoryStore is an in-memory SessionStore. Suitable for development and
// testing. Data is lost on restart.
type MemoryStore struct {
	sessions map[string]*types.Session
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*types.Session)}
}

// Create persists a new session.
func (s *MemoryStore) Create(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrAlreadyExists
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Get retrieves a session copy by (tenant, id).
func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	sess, ok := s.sessions[id]
	if !ok || sess.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// Update writes the session if the stored version matches.
func (s *MemoryStore) Update(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	cur, ok := s.sessions[sess.ID]
	if !ok || cur.TenantID != sess.TenantID {
		return ErrNotFound
	}
	if cur.Version != sess.Version {
		return ErrVersionConflict
	}

	next := sess.Clone()
	next.Version++
	s.sessions[sess.ID] = next
	sess.Version = next.Version
	return nil
}

// Ping checks if the store is healthy.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ SessionStore = (*MemoryStore)(nil)
