package repositories

import (
	"sync"

	"github.com/you/gatekeeper/domain"
)

// SessionStoreImpl implements domain.SessionStore with an in-memory map
// plus a lock map keyed by user id. The per-user locks are what
// serializes state transitions for one user across gateway I/O; the
// inner mutex only guards the maps themselves and is never held across
// a suspension point.
type SessionStoreImpl struct {
	mu       sync.Mutex
	sessions map[int64]*domain.Session
	locks    map[int64]*sync.Mutex
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStoreImpl {
	return &SessionStoreImpl{
		sessions: make(map[int64]*domain.Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Lock acquires the per-user lock, creating it on first use. Lock
// entries are kept for the process lifetime; the user population of a
// single channel stays small enough that reaping them is not worth the
// bookkeeping.
func (s *SessionStoreImpl) Lock(userID int64) {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
}

// Unlock releases the per-user lock.
func (s *SessionStoreImpl) Unlock(userID int64) {
	s.mu.Lock()
	l := s.locks[userID]
	s.mu.Unlock()
	if l != nil {
		l.Unlock()
	}
}

// Create implements domain.SessionStore.
func (s *SessionStoreImpl) Create(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.UserID]; exists {
		return domain.ErrAlreadyPending
	}
	s.sessions[session.UserID] = session
	return nil
}

// Get implements domain.SessionStore. The returned session is a copy;
// callers persist changes via Update.
func (s *SessionStoreImpl) Get(userID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// Update implements domain.SessionStore.
func (s *SessionStoreImpl) Update(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.UserID]; !ok {
		return domain.ErrSessionNotFound
	}
	copied := *session
	s.sessions[session.UserID] = &copied
	return nil
}

// Delete implements domain.SessionStore.
func (s *SessionStoreImpl) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// List implements domain.SessionStore.
func (s *SessionStoreImpl) List() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		copied := *session
		out = append(out, &copied)
	}
	return out
}

// Len implements domain.SessionStore.
func (s *SessionStoreImpl) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Clear implements domain.SessionStore.
func (s *SessionStoreImpl) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[int64]*domain.Session)
	return n
}
