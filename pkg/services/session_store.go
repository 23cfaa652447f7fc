package services

import (
	"context"
	"errors"
	"sync"

	"smartwaste-api/pkg/models"
)

// ErrSessionNotFound はセッションが存在しないことを示します。
var ErrSessionNotFound = errors.New("session not found")

// SessionStore は会話セッション状態の保存先です。
type SessionStore interface {
	Load(ctx context.Context, id string) (models.SessionState, error)
	Save(ctx context.Context, state models.SessionState) error
	Delete(ctx context.Context, id string) error
}

// MemorySessionStore はプロセス内のセッションストアです。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionState
}

// NewMemorySessionStore 新しいメモリセッションストアを作成
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]models.SessionState),
	}
}

// Load implements SessionStore.
func (s *MemorySessionStore) Load(_ context.Context, id string) (models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return models.SessionState{}, ErrSessionNotFound
	}
	return cloneSession(state), nil
}

// Save implements SessionStore.
func (s *MemorySessionStore) Save(_ context.Context, state models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = cloneSession(state)
	return nil
}

// Delete implements SessionStore.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
