package booking

import (
	"sync"
	"time"

	"tutorbook/internal/availability"
)

// Store keeps drafts per session and tutor.
type Store struct {
	drafts  map[string]*Draft
	mu      sync.RWMutex
	timeout time.Duration
}

// NewStore creates a draft store. A non-positive timeout defaults to 30 minutes.
func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Store{
		drafts:  make(map[string]*Draft),
		timeout: timeout,
	}
}

func key(sessionID, tutorID string) string {
	return sessionID + "|" + tutorID
}

// Get returns the draft for a session and tutor, or nil.
func (s *Store) Get(sessionID, tutorID string) *Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drafts[key(sessionID, tutorID)]
}

// GetOrCreate returns a live draft or starts a new one over weekly.
func (s *Store) GetOrCreate(sessionID, tutorID string, weekly availability.Weekly) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(sessionID, tutorID)
	if d, ok := s.drafts[k]; ok && !d.IsExpired(s.timeout) {
		return d
	}

	d := NewDraft(tutorID, weekly)
	s.drafts[k] = d
	return d
}

// Delete removes a draft.
func (s *Store) Delete(sessionID, tutorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key(sessionID, tutorID))
}

// Cleanup removes expired drafts.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, d := range s.drafts {
		if d.IsExpired(s.timeout) {
			delete(s.drafts, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored drafts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drafts)
}
