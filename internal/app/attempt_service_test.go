package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"ielts-practice-service/internal/app"
	"ielts-practice-service/internal/domain"
	"ielts-practice-service/internal/infra/memory"
)

var (
	testUser  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	otherUser = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// fixtureCatalog builds a reading test with 40 true/false questions, all of
// which answer "TRUE".
func fixtureCatalog() *memory.Catalog {
	sections := []domain.Section{
		{ID: 1, ExamSource: "cambridge", TestNumber: 1, Skill: "reading", PartNumber: 1},
	}
	questions := make([]domain.Question, 0, 40)
	for i := 1; i <= 40; i++ {
		questions = append(questions, domain.Question{
			ID:            int64(i),
			SectionID:     1,
			Number:        i,
			UID:           fmt.Sprintf("r1-q%d", i),
			Type:          "TRUE_FALSE_NOT_GIVEN",
			Content:       json.RawMessage(`{"prompt":"statement"}`),
			CorrectAnswer: json.RawMessage(`["TRUE"]`),
		})
	}
	return memory.NewCatalog(sections, questions)
}

func newTestService() (*app.AttemptService, *memory.AttemptStore) {
	store := memory.NewAttemptStore()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := app.NewAttemptServiceWithClock(store, fixtureCatalog(), nil, func() time.Time { return clock })
	return service, store
}

func readingKey(userID uuid.UUID) domain.AttemptKey {
	return domain.AttemptKey{UserID: userID, ExamSource: "Cambridge", TestNumber: "1", Skill: "Reading"}
}

func TestStartOrResumeReusesInProgressAttempt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	first, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if first.Status != domain.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", first.Status)
	}
	if first.ExamSource != "cambridge" || first.Skill != "reading" {
		t.Fatalf("expected normalized key, got %s/%s", first.ExamSource, first.Skill)
	}

	second, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected attempt %d to be resumed, got %d", first.ID, second.ID)
	}
}

func TestStartOrResumeCaseInsensitiveKey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	first, err := service.StartOrResume(ctx, domain.AttemptKey{
		UserID: testUser, ExamSource: "Cambridge", TestNumber: "1", Skill: "READING",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	second, err := service.StartOrResume(ctx, domain.AttemptKey{
		UserID: testUser, ExamSource: "cambridge", TestNumber: "1", Skill: "reading",
	})
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	// Case variants are one course, not a fork.
	if second.ID != first.ID {
		t.Fatalf("expected case variants to resolve to attempt %d, got %d", first.ID, second.ID)
	}

	// The stored key is canonical, so the catalog resolves the course.
	result, err := service.Submit(ctx, first.ID, testUser, map[int64]string{1: "TRUE"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.TotalQuestions != 40 {
		t.Fatalf("expected 40 total questions for mixed-case start, got %d", result.TotalQuestions)
	}
}

func TestStartOrResumeValidatesKey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	cases := []domain.AttemptKey{
		{UserID: uuid.Nil, ExamSource: "cambridge", TestNumber: "1", Skill: "reading"},
		{UserID: testUser, ExamSource: "", TestNumber: "1", Skill: "reading"},
		{UserID: testUser, ExamSource: "cambridge", TestNumber: "", Skill: "reading"},
		{UserID: testUser, ExamSource: "cambridge", TestNumber: "1", Skill: ""},
	}
	for _, key := range cases {
		if _, err := service.StartOrResume(ctx, key); err != domain.ErrInvalidInput {
			t.Fatalf("expected invalid input for %+v, got %v", key, err)
		}
	}
}

func TestStartAfterSubmitCreatesNewAttempt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	first, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.Submit(ctx, first.ID, testUser, map[int64]string{1: "TRUE"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	second, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a fresh attempt after completion, got the same ID %d", first.ID)
	}
	if second.Status != domain.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", second.Status)
	}
}

func TestSaveProgressKeepsAnswersUngraded(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	timeLeft := 1800
	part := 2
	answers := map[int64]string{1: "TRUE", 2: "FALSE", 3: "   "}
	if err := service.SaveProgress(ctx, attempt.ID, testUser, &timeLeft, &part, answers); err != nil {
		t.Fatalf("save progress failed: %v", err)
	}

	updated, err := store.Get(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.TimeLeft == nil || *updated.TimeLeft != 1800 {
		t.Fatalf("expected timeLeft 1800, got %v", updated.TimeLeft)
	}
	if updated.CurrentPart == nil || *updated.CurrentPart != 2 {
		t.Fatalf("expected currentPart 2, got %v", updated.CurrentPart)
	}

	saved, err := service.ListAnswers(ctx, attempt.ID, testUser)
	if err != nil {
		t.Fatalf("list answers failed: %v", err)
	}
	// The blank value for question 3 is dropped.
	if len(saved) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(saved))
	}
	for _, ans := range saved {
		if ans.IsCorrect != nil {
			t.Fatalf("expected ungraded answer, got isCorrect=%v", *ans.IsCorrect)
		}
	}
	if got := domain.AnswerText(saved[0].Content); got != "TRUE" {
		t.Fatalf("expected stored answer TRUE, got %q", got)
	}
}

func TestSaveProgressWithoutAnswersKeepsExistingSet(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := service.SaveProgress(ctx, attempt.ID, testUser, nil, nil, map[int64]string{1: "TRUE"}); err != nil {
		t.Fatalf("save progress failed: %v", err)
	}

	timeLeft := 600
	if err := service.SaveProgress(ctx, attempt.ID, testUser, &timeLeft, nil, nil); err != nil {
		t.Fatalf("timer-only save failed: %v", err)
	}
	saved, err := service.ListAnswers(ctx, attempt.ID, testUser)
	if err != nil {
		t.Fatalf("list answers failed: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected earlier answer to survive, got %d answers", len(saved))
	}
}

func TestSaveProgressRejectsOtherUsersAttempt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	err = service.SaveProgress(ctx, attempt.ID, otherUser, nil, nil, nil)
	if err != domain.ErrPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestSaveProgressRejectsCompletedAttempt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.Submit(ctx, attempt.ID, testUser, map[int64]string{1: "TRUE"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	err = service.SaveProgress(ctx, attempt.ID, testUser, nil, nil, nil)
	if err != domain.ErrInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestSubmitGradesAnswers(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// 30 correct, 5 wrong, 5 unanswered.
	answers := make(map[int64]string)
	for i := int64(1); i <= 30; i++ {
		answers[i] = "true"
	}
	for i := int64(31); i <= 35; i++ {
		answers[i] = "FALSE"
	}

	result, err := service.Submit(ctx, attempt.ID, testUser, answers)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Score != 30 {
		t.Fatalf("expected score 30, got %d", result.Score)
	}
	if result.TotalQuestions != 40 {
		t.Fatalf("expected 40 total questions, got %d", result.TotalQuestions)
	}
	if result.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}

	stored, err := store.Get(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Score == nil || *stored.Score != 30 {
		t.Fatalf("expected persisted score 30, got %v", stored.Score)
	}
	if stored.CompletedAt == nil {
		t.Fatalf("expected completedAt to be set")
	}
}

func TestSubmitRejectsUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err = service.Submit(ctx, attempt.ID, testUser, map[int64]string{999: "TRUE"})
	if err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestResubmitReplacesResult(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	first, err := service.Submit(ctx, attempt.ID, testUser, map[int64]string{1: "TRUE", 2: "FALSE"})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if first.Score != 1 {
		t.Fatalf("expected score 1, got %d", first.Score)
	}

	second, err := service.Submit(ctx, attempt.ID, testUser, map[int64]string{1: "TRUE", 2: "TRUE"})
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if second.AttemptID != first.AttemptID {
		t.Fatalf("expected the same attempt, got %d and %d", first.AttemptID, second.AttemptID)
	}
	if second.Score != 2 {
		t.Fatalf("expected replaced score 2, got %d", second.Score)
	}

	saved, err := service.ListAnswers(ctx, attempt.ID, testUser)
	if err != nil {
		t.Fatalf("list answers failed: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 answers after resubmit, got %d", len(saved))
	}
}

func TestCancelThenSubmitRejected(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := service.Cancel(ctx, attempt.ID, testUser); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	cancelled, err := store.Get(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.CompletedAt == nil {
		t.Fatalf("expected completedAt on cancellation")
	}

	if _, err := service.Submit(ctx, attempt.ID, testUser, map[int64]string{1: "TRUE"}); err != domain.ErrInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if err := service.Cancel(ctx, attempt.ID, testUser); err != domain.ErrInvalidState {
		t.Fatalf("expected double cancel to fail, got %v", err)
	}
}

func TestResumeRefreshesStartTime(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAttemptStore()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := app.NewAttemptServiceWithClock(store, fixtureCatalog(), nil, func() time.Time { return clock })

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	clock = clock.Add(time.Hour)
	if err := service.Resume(ctx, attempt.ID, testUser); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	resumed, err := store.Get(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !resumed.StartedAt.Equal(clock) {
		t.Fatalf("expected refreshed start time %v, got %v", clock, resumed.StartedAt)
	}
}

func TestDeleteRemovesAttemptAndAnswers(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := service.SaveProgress(ctx, attempt.ID, testUser, nil, nil, map[int64]string{1: "TRUE"}); err != nil {
		t.Fatalf("save progress failed: %v", err)
	}

	if err := service.Delete(ctx, attempt.ID, otherUser); err != domain.ErrPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := service.Delete(ctx, attempt.ID, testUser); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, attempt.ID); err != domain.ErrAttemptNotFound {
		t.Fatalf("expected attempt gone, got %v", err)
	}
}

func TestReviewJoinsQuestionsWithAnswers(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	attempt, err := service.StartOrResume(ctx, readingKey(testUser))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	answers := make(map[int64]string)
	for i := int64(1); i <= 30; i++ {
		answers[i] = "TRUE"
	}
	if _, err := service.Submit(ctx, attempt.ID, testUser, answers); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	review, err := service.Review(ctx, attempt.ID, testUser)
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if review.TotalQuestions != 40 || len(review.Questions) != 40 {
		t.Fatalf("expected all 40 questions, got %d/%d", review.TotalQuestions, len(review.Questions))
	}
	if review.BandScore == nil || *review.BandScore != 7.0 {
		t.Fatalf("expected band 7.0 for 30 correct, got %v", review.BandScore)
	}
	first := review.Questions[0]
	if first.IsCorrect == nil || !*first.IsCorrect {
		t.Fatalf("expected first question correct, got %+v", first)
	}
	last := review.Questions[39]
	if last.UserAnswer != nil {
		t.Fatalf("expected unanswered question to have no user answer")
	}
}

func TestConcurrentStartCreatesSingleAttempt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	const workers = 16
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt, err := service.StartOrResume(ctx, readingKey(testUser))
			if err != nil {
				t.Errorf("start failed: %v", err)
				return
			}
			ids[i] = attempt.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected a single attempt, got IDs %v", ids)
		}
	}
}
