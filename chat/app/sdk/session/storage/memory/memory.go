// Package memory provides the in-memory session storage policy. The auth
// record lives for the process and is gone on restart.
package memory

import (
	"sync"

	"github.com/walletchat/wchat/chat/app/sdk/session"
)

// Storage holds the single auth record behind a mutex.
type Storage struct {
	mu  sync.RWMutex
	rec session.AuthRecord
	set bool
}

// New constructs an empty storage.
func New() *Storage {
	return &Storage{}
}

// Retrieve returns the record or ErrNoRecord when none was saved.
func (s *Storage) Retrieve() (session.AuthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.set {
		return session.AuthRecord{}, session.ErrNoRecord
	}

	return s.rec, nil
}

// Save replaces the record.
func (s *Storage) Save(rec session.AuthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rec = rec
	s.set = true

	return nil
}

// Delete removes the record. Deleting an absent record is a no-op.
func (s *Storage) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rec = session.AuthRecord{}
	s.set = false

	return nil
}
