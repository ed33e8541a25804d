package app

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ielts-practice-service/internal/domain"
	"ielts-practice-service/internal/scoring"
)

// AttemptStore abstracts how attempts and their answers are persisted
// (in-memory, Postgres, etc). Implementations must make FindOrCreate and
// ReplaceAnswers atomic: two concurrent FindOrCreate calls for the same key
// must not both create a row, and an answer-set swap must never expose an
// empty window between delete and insert.
type AttemptStore interface {
	FindOrCreate(ctx context.Context, key domain.AttemptKey, startedAt time.Time) (domain.Attempt, bool, error)
	Get(ctx context.Context, id int64) (domain.Attempt, error)
	Update(ctx context.Context, attempt domain.Attempt) error
	ReplaceAnswers(ctx context.Context, attempt domain.Attempt, answers []domain.Answer) error
	Answers(ctx context.Context, attemptID int64) ([]domain.Answer, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Attempt, error)
	AnswersByUser(ctx context.Context, userID uuid.UUID) ([]domain.Answer, error)
	Delete(ctx context.Context, attemptID int64) error
}

// Catalog is the read-only question/section collaborator.
type Catalog interface {
	QuestionByID(ctx context.Context, id int64) (domain.Question, error)
	QuestionsBySection(ctx context.Context, sectionID int64) ([]domain.Question, error)
	SectionByID(ctx context.Context, id int64) (domain.Section, error)
	SectionsForTest(ctx context.Context, examSource string, testNumber int, skill string) ([]domain.Section, error)
	CountQuestions(ctx context.Context, examSource string, testNumber int, skill string) (int, error)
	ExamSources(ctx context.Context) ([]string, error)
	TestNumbers(ctx context.Context, examSource string) ([]int, error)
}

// AttemptService owns the attempt lifecycle: creation, progress saves,
// submission grading, cancellation and deletion.
type AttemptService struct {
	store   AttemptStore
	catalog Catalog
	log     *zap.Logger
	now     func() time.Time
}

func NewAttemptService(store AttemptStore, catalog Catalog, log *zap.Logger) *AttemptService {
	return NewAttemptServiceWithClock(store, catalog, log, time.Now)
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(store AttemptStore, catalog Catalog, log *zap.Logger, now func() time.Time) *AttemptService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttemptService{store: store, catalog: catalog, log: log, now: now}
}

// StartOrResume returns the user's in-progress attempt for the course key, or
// creates a new one when none exists or the latest attempt is already
// completed or cancelled. The store serializes concurrent calls per key.
func (s *AttemptService) StartOrResume(ctx context.Context, key domain.AttemptKey) (domain.Attempt, error) {
	key = key.Normalized()
	if err := key.Validate(); err != nil {
		return domain.Attempt{}, err
	}

	attempt, created, err := s.store.FindOrCreate(ctx, key, s.now())
	if err != nil {
		return domain.Attempt{}, err
	}
	if created {
		s.log.Info("attempt started",
			zap.Int64("attemptId", attempt.ID),
			zap.String("userId", key.UserID.String()),
			zap.String("examSource", key.ExamSource),
			zap.String("testNumber", key.TestNumber),
			zap.String("skill", key.Skill))
	} else {
		s.log.Info("attempt resumed", zap.Int64("attemptId", attempt.ID))
	}
	return attempt, nil
}

// SaveProgress updates the attempt's timer and part markers and, when answers
// are provided, swaps the whole answer set for the non-empty entries. Grading
// does not happen here; IsCorrect stays unset until submission.
func (s *AttemptService) SaveProgress(ctx context.Context, attemptID int64, userID uuid.UUID, timeLeft, currentPart *int, answers map[int64]string) error {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.Status != domain.StatusInProgress {
		return domain.ErrInvalidState
	}

	if timeLeft != nil {
		attempt.TimeLeft = timeLeft
	}
	if currentPart != nil {
		attempt.CurrentPart = currentPart
	}

	if len(answers) == 0 {
		return s.store.Update(ctx, attempt)
	}

	rows, err := s.buildAnswers(ctx, attempt, answers, false)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceAnswers(ctx, attempt, rows); err != nil {
		return err
	}
	s.log.Info("progress saved", zap.Int64("attemptId", attemptID), zap.Int("answers", len(rows)))
	return nil
}

// Submit grades the submitted answers, replaces the stored answer set with the
// graded rows and completes the attempt. Re-submitting a completed attempt is
// allowed and replaces the previous result; cancelled attempts are rejected.
func (s *AttemptService) Submit(ctx context.Context, attemptID int64, userID uuid.UUID, answers map[int64]string) (domain.TestResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return domain.TestResult{}, err
	}
	if attempt.Status == domain.StatusCancelled {
		return domain.TestResult{}, domain.ErrInvalidState
	}

	rows, err := s.buildAnswers(ctx, attempt, answers, true)
	if err != nil {
		return domain.TestResult{}, err
	}
	correct := 0
	for _, row := range rows {
		if row.IsCorrect != nil && *row.IsCorrect {
			correct++
		}
	}

	now := s.now()
	attempt.Status = domain.StatusCompleted
	attempt.CompletedAt = &now
	attempt.Score = &correct
	if err := s.store.ReplaceAnswers(ctx, attempt, rows); err != nil {
		return domain.TestResult{}, err
	}

	total := s.totalQuestions(ctx, attempt)
	s.log.Info("attempt completed",
		zap.Int64("attemptId", attemptID),
		zap.Int("score", correct),
		zap.Int("totalQuestions", total))

	return domain.TestResult{
		AttemptID:      attempt.ID,
		Score:          correct,
		TotalQuestions: total,
		Status:         attempt.Status,
	}, nil
}

// Cancel abandons an in-progress attempt, keeping it as history.
func (s *AttemptService) Cancel(ctx context.Context, attemptID int64, userID uuid.UUID) error {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.Status != domain.StatusInProgress {
		return domain.ErrInvalidState
	}
	now := s.now()
	attempt.Status = domain.StatusCancelled
	attempt.CompletedAt = &now
	if err := s.store.Update(ctx, attempt); err != nil {
		return err
	}
	s.log.Info("attempt cancelled", zap.Int64("attemptId", attemptID))
	return nil
}

// Resume refreshes the attempt's start time so it becomes the most recent one
// for its key. Clients use this to reclaim an attempt after a restart.
func (s *AttemptService) Resume(ctx context.Context, attemptID int64, userID uuid.UUID) error {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.Status != domain.StatusInProgress {
		return domain.ErrInvalidState
	}
	attempt.StartedAt = s.now()
	return s.store.Update(ctx, attempt)
}

// Delete removes the attempt and all of its answers.
func (s *AttemptService) Delete(ctx context.Context, attemptID int64, userID uuid.UUID) error {
	if _, err := s.ownedAttempt(ctx, attemptID, userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, attemptID); err != nil {
		return err
	}
	s.log.Info("attempt deleted", zap.Int64("attemptId", attemptID))
	return nil
}

// ListAnswers returns the attempt's current answer set.
func (s *AttemptService) ListAnswers(ctx context.Context, attemptID int64, userID uuid.UUID) ([]domain.Answer, error) {
	if _, err := s.ownedAttempt(ctx, attemptID, userID); err != nil {
		return nil, err
	}
	return s.store.Answers(ctx, attemptID)
}

// Review joins every question of the course with the user's answers for the
// attempt, ordered by question number.
func (s *AttemptService) Review(ctx context.Context, attemptID int64, userID uuid.UUID) (domain.TestReview, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return domain.TestReview{}, err
	}

	answers, err := s.store.Answers(ctx, attemptID)
	if err != nil {
		return domain.TestReview{}, err
	}
	byQuestion := make(map[int64]domain.Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}

	questions, err := s.courseQuestions(ctx, attempt)
	if err != nil {
		return domain.TestReview{}, err
	}

	review := domain.TestReview{
		AttemptID:      attempt.ID,
		ExamSource:     attempt.ExamSource,
		TestNumber:     attempt.TestNumber,
		Skill:          attempt.Skill,
		Score:          attempt.Score,
		TotalQuestions: len(questions),
		StartedAt:      attempt.StartedAt,
		CompletedAt:    attempt.CompletedAt,
		BandScore:      scoring.BandForAttempt(attempt.Status, attempt.Skill, attempt.Score),
	}
	if attempt.CompletedAt != nil {
		seconds := int64(attempt.CompletedAt.Sub(attempt.StartedAt) / time.Second)
		review.DurationSeconds = &seconds
	}

	review.Questions = make([]domain.QuestionReview, 0, len(questions))
	for _, q := range questions {
		qr := domain.QuestionReview{
			Number:        q.Number,
			UID:           q.UID,
			Type:          q.Type,
			Content:       q.Content,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}
		if ans, ok := byQuestion[q.ID]; ok {
			qr.UserAnswer = ans.Content
			qr.IsCorrect = ans.IsCorrect
		}
		review.Questions = append(review.Questions, qr)
	}
	return review, nil
}

func (s *AttemptService) ownedAttempt(ctx context.Context, attemptID int64, userID uuid.UUID) (domain.Attempt, error) {
	if attemptID <= 0 || userID == uuid.Nil {
		return domain.Attempt{}, domain.ErrInvalidInput
	}
	attempt, err := s.store.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.UserID != userID {
		return domain.Attempt{}, domain.ErrPermissionDenied
	}
	return attempt, nil
}

// buildAnswers turns the submitted map into answer rows, skipping empty
// values. With grade set, each answer is checked against the catalog's
// correct-answer spec.
func (s *AttemptService) buildAnswers(ctx context.Context, attempt domain.Attempt, answers map[int64]string, grade bool) ([]domain.Answer, error) {
	ids := make([]int64, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	now := s.now()
	rows := make([]domain.Answer, 0, len(ids))
	for _, questionID := range ids {
		value := answers[questionID]
		if strings.TrimSpace(value) == "" {
			continue
		}
		row := domain.Answer{
			UserID:      attempt.UserID,
			AttemptID:   attempt.ID,
			QuestionID:  questionID,
			Content:     domain.NewAnswerContent(value),
			SubmittedAt: now,
		}
		if grade {
			question, err := s.catalog.QuestionByID(ctx, questionID)
			if err != nil {
				return nil, err
			}
			correct := scoring.Grade(value, question.CorrectAnswer)
			row.IsCorrect = &correct
		} else if _, err := s.catalog.QuestionByID(ctx, questionID); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// totalQuestions counts every question in the attempt's course. An attempt
// whose test number is not numeric yields 0 rather than an error.
func (s *AttemptService) totalQuestions(ctx context.Context, attempt domain.Attempt) int {
	testNumber, ok := parseTestNumber(attempt.TestNumber)
	if !ok {
		return 0
	}
	total, err := s.catalog.CountQuestions(ctx, attempt.ExamSource, testNumber, attempt.Skill)
	if err != nil {
		s.log.Warn("count questions failed", zap.Int64("attemptId", attempt.ID), zap.Error(err))
		return 0
	}
	return total
}

func (s *AttemptService) courseQuestions(ctx context.Context, attempt domain.Attempt) ([]domain.Question, error) {
	testNumber, ok := parseTestNumber(attempt.TestNumber)
	if !ok {
		return nil, nil
	}
	sections, err := s.catalog.SectionsForTest(ctx, attempt.ExamSource, testNumber, attempt.Skill)
	if err != nil {
		return nil, err
	}
	var questions []domain.Question
	for _, section := range sections {
		qs, err := s.catalog.QuestionsBySection(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		questions = append(questions, qs...)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Number < questions[j].Number })
	return questions, nil
}

func parseTestNumber(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
