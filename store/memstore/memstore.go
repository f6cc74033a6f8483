// Package memstore keeps profiles and verification rows in process memory.
// It is intended for tests and single-instance deployments.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
)

// Store implements [store.ProfileStore], [store.VerificationStore] and
// [store.Pruner]. A single mutex serializes every mutation.
type Store struct {
	mu            sync.Mutex
	profiles      map[string]store.Profile
	verifications map[string]map[string]session.Verification
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		profiles:      make(map[string]store.Profile),
		verifications: make(map[string]map[string]session.Verification),
	}
}

// PutUser registers a user so the engine can manage its profile. Existing
// profiles are left untouched.
func (s *Store) PutUser(userID, accountName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; ok {
		return
	}
	s.profiles[userID] = store.Profile{UserID: userID, AccountName: accountName}
}

// GetProfile returns a copy of the profile of userID.
func (s *Store) GetProfile(_ context.Context, userID string) (store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return store.Profile{}, store.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// UpdateProfile runs fn on a copy under the store mutex and keeps the copy
// when fn returns nil.
func (s *Store) UpdateProfile(_ context.Context, userID string, fn store.UpdateFunc) (store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[userID]
	if !ok {
		return store.Profile{}, store.ErrProfileNotFound
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return store.Profile{}, err
	}
	next.UserID = userID
	next.Version = current.Version + 1
	s.profiles[userID] = next

	return next.Clone(), nil
}

// MarkVerified stores v, replacing any earlier row of the same session.
func (s *Store) MarkVerified(_ context.Context, v session.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.verifications[v.UserID]
	if !ok {
		rows = make(map[string]session.Verification)
		s.verifications[v.UserID] = rows
	}
	rows[v.SessionID] = v
	return nil
}

// GetVerification returns the row of one session.
func (s *Store) GetVerification(_ context.Context, userID, sessionID string) (session.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.verifications[userID][sessionID]
	if !ok {
		return session.Verification{}, session.ErrVerificationNotFound
	}
	return v, nil
}

// DeleteVerification removes the row of one session.
func (s *Store) DeleteVerification(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.verifications[userID]
	delete(rows, sessionID)
	if len(rows) == 0 {
		delete(s.verifications, userID)
	}
	return nil
}

// DeleteUserVerifications removes every row of userID and reports how many.
func (s *Store) DeleteUserVerifications(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.verifications[userID])
	delete(s.verifications, userID)
	return n, nil
}

// PruneExpired drops rows whose ExpiresAt is at or before now.
func (s *Store) PruneExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for userID, rows := range s.verifications {
		for sessionID, v := range rows {
			if !v.ExpiresAt.IsZero() && !now.Before(v.ExpiresAt) {
				delete(rows, sessionID)
				pruned++
			}
		}
		if len(rows) == 0 {
			delete(s.verifications, userID)
		}
	}
	return pruned, nil
}

var (
	_ store.ProfileStore      = (*Store)(nil)
	_ store.VerificationStore = (*Store)(nil)
	_ store.Pruner            = (*Store)(nil)
)
