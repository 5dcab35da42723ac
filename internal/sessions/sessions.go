// Package sessions provides in-memory session management for multi-turn
// conversations. One session per user, created lazily on first message,
// alive for the process lifetime. Losing conversational memory on restart
// is tolerated; there is no eviction and no persistence.
package sessions

import (
	"sync"
	"time"

	"github.com/vibeone/assistant/pkg/models"
)

// Store is a thread-safe in-memory session store keyed by user id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session // key: user ID
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*models.Session)}
}

// SessionID derives the deterministic session identifier for a user.
// One session per user by construction.
func SessionID(userID string) string {
	return "session_" + userID
}

// GetOrCreate returns the session for userID, creating it with an empty
// turn sequence on first access. Idempotent: repeated calls return the
// same session value.
func (s *Store) GetOrCreate(userID string) *models.Session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}

	now := time.Now().UTC()
	sess = &models.Session{
		ID:        SessionID(userID),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[userID] = sess
	return sess
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
