// README: In-memory session store with per-user locks and request liveness checks.
package advisor

import (
	"sync"

	"traveladvisor/internal/types"
)

// Store owns all user sessions. It is the single source of truth for "is
// this user mid-conversation": a scheduled recheck must re-validate its
// request against the store before acting, so a cancel that raced the timer
// turns the firing into a no-op.
//
// Sessions live in memory only; nothing survives a restart.
type Store struct {
	mu       sync.Mutex
	sessions map[types.ID]*UserSession
	locks    map[types.ID]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[types.ID]*UserSession),
		locks:    make(map[types.ID]*sync.Mutex),
	}
}

// UserLock returns the mutex serializing all session mutation for one user.
// Message handling and scheduler firings for the same user must hold it;
// work for different users never contends.
func (s *Store) UserLock(userID types.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Get returns the session for userID, or nil when the user is idle.
func (s *Store) Get(userID types.ID) *UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

// Put registers the session under its user id.
func (s *Store) Put(sess *UserSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

// Remove drops the user's session. Dropping the last reference to the
// session also ends the life of its travel request.
func (s *Store) Remove(userID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// ActiveRequestID returns the id of the request currently registered for
// userID, or "" when none is. Firings compare this against the request they
// hold: a mismatch means the request was cancelled or replaced.
func (s *Store) ActiveRequestID(userID types.ID) types.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || sess.Request == nil {
		return ""
	}
	return sess.Request.ID
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
