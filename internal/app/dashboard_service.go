package app

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ielts-practice-service/internal/domain"
	"ielts-practice-service/internal/scoring"
)

// ProfileStore supplies the user profile and the optional goal target.
type ProfileStore interface {
	Profile(ctx context.Context, userID uuid.UUID) (domain.Profile, error)
	Target(ctx context.Context, userID uuid.UUID) (*domain.Target, error)
}

// DashboardService reconstructs progress views from the raw attempt and
// answer history. It holds no state between calls; lookup memos live for a
// single aggregation only.
type DashboardService struct {
	store    AttemptStore
	catalog  Catalog
	profiles ProfileStore
	log      *zap.Logger
}

func NewDashboardService(store AttemptStore, catalog Catalog, profiles ProfileStore, log *zap.Logger) *DashboardService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardService{store: store, catalog: catalog, profiles: profiles, log: log}
}

// courseKey is the aggregation unit: one test of one exam source for one skill.
type courseKey struct {
	examSource string
	testNumber string
	skill      string
}

// Summary builds the dashboard for one user. Course progress is sorted by most
// recent activity (never-completed courses last), filtered by the optional
// search term and paginated; the other aggregates always cover all history.
func (s *DashboardService) Summary(ctx context.Context, userID uuid.UUID, page, size int, search string) (domain.DashboardSummary, error) {
	if userID == uuid.Nil {
		return domain.DashboardSummary{}, domain.ErrInvalidInput
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 3
	}

	profile, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	target, err := s.profiles.Target(ctx, userID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	attempts, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	answers, err := s.store.AnswersByUser(ctx, userID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	progress := s.aggregateCourses(ctx, attempts, answers)
	progress = filterProgress(progress, search)
	total := len(progress)
	pageEntries := paginate(progress, page, size)

	summary := domain.DashboardSummary{
		Profile:        &profile,
		Stats:          aggregateStats(answers),
		RecentActivity: recentActivity(answers),
		SkillSummary:   s.aggregateSkills(ctx, answers),
		CourseProgress: pageEntries,
		TotalCourses:   total,
		Page:           page,
		PageSize:       size,
		Goals:          goalsFromTarget(target),
	}
	return summary, nil
}

// ExamSources lists the distinct exam sources in the catalog.
func (s *DashboardService) ExamSources(ctx context.Context) ([]string, error) {
	return s.catalog.ExamSources(ctx)
}

// TestNumbers lists the test numbers available for one exam source.
func (s *DashboardService) TestNumbers(ctx context.Context, examSource string) ([]int, error) {
	examSource = strings.TrimSpace(examSource)
	if examSource == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.catalog.TestNumbers(ctx, examSource)
}

func (s *DashboardService) aggregateCourses(ctx context.Context, attempts []domain.Attempt, answers []domain.Answer) []domain.CourseProgress {
	if len(attempts) == 0 {
		return []domain.CourseProgress{}
	}

	groups := make(map[courseKey][]domain.Attempt)
	for _, attempt := range attempts {
		key := courseKey{attempt.ExamSource, attempt.TestNumber, attempt.Skill}
		groups[key] = append(groups[key], attempt)
	}

	answersByAttempt := make(map[int64][]domain.Answer)
	for _, ans := range answers {
		answersByAttempt[ans.AttemptID] = append(answersByAttempt[ans.AttemptID], ans)
	}

	// Question counts are memoized for this call only; the store is the sole
	// shared state across requests.
	totals := make(map[courseKey]int)

	entries := make([]domain.CourseProgress, 0, len(groups))
	for key, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].StartedAt.After(group[j].StartedAt) })
		representative := group[0]

		totalQuestions, ok := totals[key]
		if !ok {
			totalQuestions = s.countQuestions(ctx, key)
			totals[key] = totalQuestions
		}

		attempted := len(answersByAttempt[representative.ID])
		correct := 0
		for _, ans := range answersByAttempt[representative.ID] {
			if ans.IsCorrect != nil && *ans.IsCorrect {
				correct++
			}
		}
		completionRate := 0.0
		if totalQuestions > 0 {
			completionRate = float64(attempted) / float64(totalQuestions)
		}

		history := make([]domain.AttemptHistory, 0, len(group))
		for _, attempt := range group {
			history = append(history, domain.AttemptHistory{
				AttemptID:   attempt.ID,
				CompletedAt: attempt.CompletedAt,
				Score:       attempt.Score,
				Status:      attempt.Status,
				BandScore:   scoring.BandForAttempt(attempt.Status, attempt.Skill, attempt.Score),
			})
		}

		entries = append(entries, domain.CourseProgress{
			AttemptID:        representative.ID,
			ExamSource:       representative.ExamSource,
			TestNumber:       representative.TestNumber,
			Skill:            representative.Skill,
			TotalQuestions:   totalQuestions,
			AnswersAttempted: attempted,
			CorrectAnswers:   correct,
			LastAttempt:      representative.CompletedAt,
			CompletionRate:   completionRate,
			Status:           representative.Status,
			BandScore:        scoring.BandForAttempt(representative.Status, representative.Skill, representative.Score),
			History:          history,
		})
	}

	// Most recent activity first, courses without a completed attempt last.
	sort.Slice(entries, func(i, j int) bool {
		left, right := entries[i].LastAttempt, entries[j].LastAttempt
		switch {
		case left == nil && right == nil:
			return entries[i].AttemptID > entries[j].AttemptID
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.After(*right)
		}
	})
	return entries
}

// countQuestions resolves the course size, tolerating non-numeric test numbers
// by degrading to zero instead of failing the whole summary.
func (s *DashboardService) countQuestions(ctx context.Context, key courseKey) int {
	testNumber, err := strconv.Atoi(strings.TrimSpace(key.testNumber))
	if err != nil {
		return 0
	}
	total, err := s.catalog.CountQuestions(ctx, key.examSource, testNumber, key.skill)
	if err != nil {
		s.log.Warn("count questions failed",
			zap.String("examSource", key.examSource),
			zap.String("testNumber", key.testNumber),
			zap.String("skill", key.skill),
			zap.Error(err))
		return 0
	}
	return total
}

// aggregateSkills groups all answers by the skill of the owning question's
// section. Answers whose question or section cannot be resolved are counted
// under "unknown".
func (s *DashboardService) aggregateSkills(ctx context.Context, answers []domain.Answer) []domain.SkillSummary {
	if len(answers) == 0 {
		return []domain.SkillSummary{}
	}

	questionSkills := make(map[int64]string)
	sectionSkills := make(map[int64]string)
	skillOf := func(questionID int64) string {
		if skill, ok := questionSkills[questionID]; ok {
			return skill
		}
		skill := "unknown"
		if question, err := s.catalog.QuestionByID(ctx, questionID); err == nil {
			if cached, ok := sectionSkills[question.SectionID]; ok {
				skill = cached
			} else if section, err := s.catalog.SectionByID(ctx, question.SectionID); err == nil {
				skill = strings.ToLower(section.Skill)
				sectionSkills[question.SectionID] = skill
			}
		}
		questionSkills[questionID] = skill
		return skill
	}

	type tally struct{ total, correct int }
	tallies := make(map[string]*tally)
	for _, ans := range answers {
		skill := skillOf(ans.QuestionID)
		t, ok := tallies[skill]
		if !ok {
			t = &tally{}
			tallies[skill] = t
		}
		t.total++
		if ans.IsCorrect != nil && *ans.IsCorrect {
			t.correct++
		}
	}

	summaries := make([]domain.SkillSummary, 0, len(tallies))
	for skill, t := range tallies {
		accuracy := 0.0
		if t.total > 0 {
			accuracy = float64(t.correct) * 100.0 / float64(t.total)
		}
		summaries = append(summaries, domain.SkillSummary{
			Skill:            skill,
			Attempts:         t.total,
			CorrectAnswers:   t.correct,
			IncorrectAnswers: t.total - t.correct,
			Accuracy:         accuracy,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Skill < summaries[j].Skill })
	return summaries
}

func aggregateStats(answers []domain.Answer) domain.UserStats {
	attemptIDs := make(map[int64]struct{})
	correct := 0
	for _, ans := range answers {
		attemptIDs[ans.AttemptID] = struct{}{}
		if ans.IsCorrect != nil && *ans.IsCorrect {
			correct++
		}
	}
	accuracy := 0.0
	if len(answers) > 0 {
		accuracy = float64(correct) * 100.0 / float64(len(answers))
	}
	return domain.UserStats{
		TestsCompleted:  len(attemptIDs),
		TotalAnswers:    len(answers),
		CorrectAnswers:  correct,
		OverallAccuracy: accuracy,
	}
}

func recentActivity(answers []domain.Answer) []domain.RecentActivity {
	activity := make([]domain.RecentActivity, 0, len(answers))
	for _, ans := range answers {
		activity = append(activity, domain.RecentActivity{
			QuestionID:  ans.QuestionID,
			SubmittedAt: ans.SubmittedAt,
			Correct:     ans.IsCorrect,
		})
	}
	sort.Slice(activity, func(i, j int) bool { return activity[i].SubmittedAt.After(activity[j].SubmittedAt) })
	return activity
}

func filterProgress(entries []domain.CourseProgress, search string) []domain.CourseProgress {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return entries
	}
	filtered := make([]domain.CourseProgress, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.ExamSource), search) ||
			strings.Contains(strings.ToLower(entry.Skill), search) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func paginate(entries []domain.CourseProgress, page, size int) []domain.CourseProgress {
	start := page * size
	if start >= len(entries) {
		return []domain.CourseProgress{}
	}
	end := start + size
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

func goalsFromTarget(target *domain.Target) []domain.Goal {
	if target == nil {
		return []domain.Goal{}
	}
	goals := make([]domain.Goal, 0, 4)
	add := func(label string, band *float64) {
		if band == nil {
			return
		}
		goals = append(goals, domain.Goal{
			Label:      label,
			Value:      strconv.FormatFloat(*band, 'f', -1, 64),
			TargetDate: target.ExamDate,
		})
	}
	add("Listening", target.Listening)
	add("Reading", target.Reading)
	add("Writing", target.Writing)
	add("Speaking", target.Speaking)
	return goals
}

// IsNotFound reports whether err belongs to the not-found error family.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrAttemptNotFound) ||
		errors.Is(err, domain.ErrQuestionNotFound) ||
		errors.Is(err, domain.ErrSectionNotFound) ||
		errors.Is(err, domain.ErrProfileNotFound)
}
