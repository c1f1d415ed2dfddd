package browsersession

import (
	"fmt"
	"sync"
	"time"
)

// InMemoryRepo is an in-memory implementation of Repo.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryRepo creates a new in-memory browser session repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{sessions: make(map[string]*Session)}
}

// Upsert creates or updates a browser session.
func (r *InMemoryRepo) Upsert(id string, sess *Session) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if sess == nil {
		return fmt.Errorf("session is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = sess
	return nil
}

// Get retrieves a browser session by ID and marks it as seen.
func (r *InMemoryRepo) Get(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	sess.LastSeen = time.Now()
	return sess, nil
}

// Delete removes a browser session. Deleting an unknown ID is not an
// error.
func (r *InMemoryRepo) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// PurgeIdle drops sessions idle for longer than maxAge and returns how
// many were removed. Intended to run on a ticker.
func (r *InMemoryRepo) PurgeIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, sess := range r.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
