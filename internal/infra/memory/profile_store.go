package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ielts-practice-service/internal/domain"
)

// ProfileStore keeps profiles and targets in memory. With synthesize enabled
// (demo mode) an unknown user gets an on-the-fly guest profile instead of a
// not-found error.
type ProfileStore struct {
	mu         sync.RWMutex
	profiles   map[uuid.UUID]domain.Profile
	targets    map[uuid.UUID]domain.Target
	synthesize bool
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[uuid.UUID]domain.Profile),
		targets:  make(map[uuid.UUID]domain.Target),
	}
}

// NewGuestProfileStore synthesizes profiles for unknown users.
func NewGuestProfileStore() *ProfileStore {
	store := NewProfileStore()
	store.synthesize = true
	return store
}

func (s *ProfileStore) Put(profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
}

func (s *ProfileStore) PutTarget(target domain.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[target.UserID] = target
}

func (s *ProfileStore) Profile(_ context.Context, userID uuid.UUID) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if profile, ok := s.profiles[userID]; ok {
		return profile, nil
	}
	if s.synthesize {
		return domain.Profile{ID: userID, Username: "guest"}, nil
	}
	return domain.Profile{}, domain.ErrProfileNotFound
}

func (s *ProfileStore) Target(_ context.Context, userID uuid.UUID) (*domain.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if target, ok := s.targets[userID]; ok {
		copied := target
		return &copied, nil
	}
	return nil, nil
}
