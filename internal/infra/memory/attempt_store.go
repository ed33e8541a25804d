package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ielts-practice-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore, used by
// tests and the storeless demo mode. A single mutex serializes every
// operation, which trivially satisfies the find-or-create and answer-swap
// atomicity requirements.
type AttemptStore struct {
	mu            sync.Mutex
	nextAttemptID int64
	nextAnswerID  int64
	attempts      map[int64]domain.Attempt
	answers       map[int64][]domain.Answer
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[int64]domain.Attempt),
		answers:  make(map[int64][]domain.Answer),
	}
}

func (s *AttemptStore) FindOrCreate(_ context.Context, key domain.AttemptKey, startedAt time.Time) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.Attempt
	for id := range s.attempts {
		attempt := s.attempts[id]
		if attempt.Key() != key {
			continue
		}
		if latest == nil || attempt.StartedAt.After(latest.StartedAt) {
			copied := attempt
			latest = &copied
		}
	}
	if latest != nil && latest.Status == domain.StatusInProgress {
		return *latest, false, nil
	}

	s.nextAttemptID++
	attempt := domain.Attempt{
		ID:         s.nextAttemptID,
		UserID:     key.UserID,
		ExamSource: key.ExamSource,
		TestNumber: key.TestNumber,
		Skill:      key.Skill,
		Status:     domain.StatusInProgress,
		StartedAt:  startedAt,
	}
	s.attempts[attempt.ID] = attempt
	return attempt, true, nil
}

func (s *AttemptStore) Get(_ context.Context, id int64) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptStore) Update(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; !ok {
		return domain.ErrAttemptNotFound
	}
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *AttemptStore) ReplaceAnswers(_ context.Context, attempt domain.Attempt, answers []domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; !ok {
		return domain.ErrAttemptNotFound
	}
	s.attempts[attempt.ID] = attempt

	replaced := make([]domain.Answer, 0, len(answers))
	for _, ans := range answers {
		s.nextAnswerID++
		ans.ID = s.nextAnswerID
		ans.AttemptID = attempt.ID
		replaced = append(replaced, ans)
	}
	s.answers[attempt.ID] = replaced
	return nil
}

func (s *AttemptStore) Answers(_ context.Context, attemptID int64) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := make([]domain.Answer, len(s.answers[attemptID]))
	copy(answers, s.answers[attemptID])
	return answers, nil
}

func (s *AttemptStore) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var attempts []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.UserID == userID {
			attempts = append(attempts, attempt)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].ID < attempts[j].ID })
	return attempts, nil
}

func (s *AttemptStore) AnswersByUser(_ context.Context, userID uuid.UUID) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var answers []domain.Answer
	for attemptID := range s.answers {
		for _, ans := range s.answers[attemptID] {
			if ans.UserID == userID {
				answers = append(answers, ans)
			}
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	return answers, nil
}

func (s *AttemptStore) Delete(_ context.Context, attemptID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	delete(s.attempts, attemptID)
	delete(s.answers, attemptID)
	return nil
}
