package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"imobot-backend/internal/domain"
)

// Session lifecycle defaults.
const (
	DefaultSessionTTL      = 30 * time.Minute
	DefaultSessionCapacity = 10000
)

// SessionStore keeps conversation sessions in memory. Sessions expire after
// ttl without activity, and the least recently used session is evicted when
// capacity is reached.
type SessionStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *domain.Session]
}

// NewSessionStore creates a store bounded by capacity and ttl. Non-positive
// values fall back to the defaults.
func NewSessionStore(capacity int, ttl time.Duration) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	onEvict := func(id string, s *domain.Session) {
		slog.Debug("session evicted", "session_id", id, "state", s.State)
	}
	return &SessionStore{
		cache: expirable.NewLRU[string, *domain.Session](capacity, onEvict, ttl),
	}
}

// GetOrCreate returns the live session for id, creating a WELCOME session
// when none exists. Access refreshes the session's expiry.
func (m *SessionStore) GetOrCreate(id string) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cache.Get(id)
	if !ok {
		s = domain.NewSession(id)
	}
	// re-adding resets the TTL of an existing entry
	m.cache.Add(id, s)
	return s, !ok
}

// Get returns the session for id without refreshing it.
func (m *SessionStore) Get(id string) (*domain.Session, bool) {
	return m.cache.Peek(id)
}

// Delete forgets a session.
func (m *SessionStore) Delete(id string) {
	m.cache.Remove(id)
}

// Len is the number of live sessions.
func (m *SessionStore) Len() int {
	return m.cache.Len()
}
