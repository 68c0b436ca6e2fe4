// Package session provides the server-side session stores used to pre-seed
// session state for a request. The memory store is the default for tests; the
// SQLite store mirrors a persistent host-framework session driver.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store seeds and inspects server-side sessions on behalf of the test client.
type Store interface {
	// Create stores a new session with the given values and returns its id.
	Create(ctx context.Context, values map[string]any) (string, error)
	// Get returns the values of an existing session.
	Get(ctx context.Context, id string) (map[string]any, error)
	// Put replaces a single value in an existing session.
	Put(ctx context.Context, id, key string, value any) error
	// Destroy removes a session. Destroying an unknown id is not an error.
	Destroy(ctx context.Context, id string) error
}

// ErrSessionNotFound is returned when a session id does not exist.
type ErrSessionNotFound struct {
	ID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[string]any),
	}
}

func (s *MemoryStore) Create(_ context.Context, values map[string]any) (string, error) {
	id := uuid.New().String()

	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}

	s.mu.Lock()
	s.sessions[id] = copied
	s.mu.Unlock()

	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (map[string]any, error) {
	s.mu.RLock()
	values, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, &ErrSessionNotFound{ID: id}
	}

	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return copied, nil
}

func (s *MemoryStore) Put(_ context.Context, id, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.sessions[id]
	if !ok {
		return &ErrSessionNotFound{ID: id}
	}
	values[key] = value
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
