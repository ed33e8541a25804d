package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attempt statuses. Completed and cancelled attempts are immutable history;
// a retake creates a fresh row for the same course key.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Skills known to the platform. Band conversion only applies to reading and
// listening; writing and speaking have no auto-graded score.
const (
	SkillReading   = "reading"
	SkillListening = "listening"
	SkillWriting   = "writing"
	SkillSpeaking  = "speaking"
)

// AttemptKey identifies one course for one user: a specific test of a specific
// exam source taken for a specific skill.
type AttemptKey struct {
	UserID     uuid.UUID
	ExamSource string
	TestNumber string
	Skill      string
}

// Normalized returns the canonical form of the key: trimmed, with exam source
// and skill lowercased. Attempts are only ever created from normalized keys,
// so "Cambridge"/"Reading" and "cambridge"/"reading" are the same course.
func (k AttemptKey) Normalized() AttemptKey {
	k.ExamSource = strings.ToLower(strings.TrimSpace(k.ExamSource))
	k.TestNumber = strings.TrimSpace(k.TestNumber)
	k.Skill = strings.ToLower(strings.TrimSpace(k.Skill))
	return k
}

// Validate rejects keys with missing identifying parameters before any store
// access happens.
func (k AttemptKey) Validate() error {
	if k.UserID == uuid.Nil {
		return ErrInvalidInput
	}
	if k.ExamSource == "" || k.TestNumber == "" || k.Skill == "" {
		return ErrInvalidInput
	}
	return nil
}

// Attempt is one user's timed run through a course.
type Attempt struct {
	ID          int64      `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	ExamSource  string     `json:"examSource"`
	TestNumber  string     `json:"testNumber"`
	Skill       string     `json:"skill"`
	Status      string     `json:"status"`
	Score       *int       `json:"score,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	TimeLeft    *int       `json:"timeLeft,omitempty"`
	CurrentPart *int       `json:"currentPart,omitempty"`
}

// Key returns the course key the attempt belongs to.
func (a Attempt) Key() AttemptKey {
	return AttemptKey{
		UserID:     a.UserID,
		ExamSource: a.ExamSource,
		TestNumber: a.TestNumber,
		Skill:      a.Skill,
	}
}

// Answer is one user's response to one question within one attempt. IsCorrect
// stays nil until the attempt is submitted and graded.
type Answer struct {
	ID          int64           `json:"id"`
	UserID      uuid.UUID       `json:"userId"`
	AttemptID   int64           `json:"attemptId"`
	QuestionID  int64           `json:"questionId"`
	Content     json.RawMessage `json:"answerContent"`
	IsCorrect   *bool           `json:"isCorrect,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// NewAnswerContent wraps a plain submitted value in the stored JSON shape.
func NewAnswerContent(value string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"value": value})
	return raw
}

// AnswerText extracts the plain value from stored answer content. Returns ""
// for malformed payloads.
func AnswerText(content json.RawMessage) string {
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(content, &wrapped); err == nil && wrapped.Value != "" {
		return wrapped.Value
	}
	var plain string
	if err := json.Unmarshal(content, &plain); err == nil {
		return plain
	}
	return ""
}

// AnswerSpec is the stored correct-answer specification: either a single JSON
// string or an array of acceptable equivalents.
type AnswerSpec = json.RawMessage

// Question is catalog content, read-only to this service.
type Question struct {
	ID            int64           `json:"id"`
	SectionID     int64           `json:"sectionId"`
	Number        int             `json:"questionNumber"`
	UID           string          `json:"questionUid"`
	Type          string          `json:"questionType"`
	Content       json.RawMessage `json:"questionContent"`
	CorrectAnswer AnswerSpec      `json:"correctAnswer"`
	Explanation   string          `json:"explanation,omitempty"`
}

// Section groups questions; (ExamSource, TestNumber, Skill) is the course unit
// used for aggregation.
type Section struct {
	ID         int64  `json:"id"`
	ExamSource string `json:"examSource"`
	TestNumber int    `json:"testNumber"`
	Skill      string `json:"skill"`
	PartNumber int    `json:"partNumber"`
}

// Profile is the user record supplied by the identity collaborator.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Target holds the user's goal bands and planned exam date.
type Target struct {
	UserID    uuid.UUID  `json:"userId"`
	ExamName  string     `json:"examName,omitempty"`
	ExamDate  *time.Time `json:"examDate,omitempty"`
	Listening *float64   `json:"listening,omitempty"`
	Reading   *float64   `json:"reading,omitempty"`
	Writing   *float64   `json:"writing,omitempty"`
	Speaking  *float64   `json:"speaking,omitempty"`
}

// TestResult is returned from a submission. TotalQuestions counts every
// question in the course, not just the answered ones.
type TestResult struct {
	AttemptID      int64  `json:"attemptId"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Status         string `json:"status"`
}

// QuestionReview pairs one question with the user's graded answer.
type QuestionReview struct {
	Number        int             `json:"questionNumber"`
	UID           string          `json:"questionUid"`
	Type          string          `json:"questionType"`
	Content       json.RawMessage `json:"questionContent"`
	UserAnswer    json.RawMessage `json:"userAnswer,omitempty"`
	CorrectAnswer AnswerSpec      `json:"correctAnswer"`
	IsCorrect     *bool           `json:"isCorrect,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
}

// TestReview is the full post-attempt breakdown.
type TestReview struct {
	AttemptID       int64            `json:"attemptId"`
	ExamSource      string           `json:"examSource"`
	TestNumber      string           `json:"testNumber"`
	Skill           string           `json:"skill"`
	Score           *int             `json:"score,omitempty"`
	TotalQuestions  int              `json:"totalQuestions"`
	StartedAt       time.Time        `json:"startedAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	DurationSeconds *int64           `json:"duration,omitempty"`
	BandScore       *float64         `json:"bandScore,omitempty"`
	Questions       []QuestionReview `json:"questions"`
}

// AttemptHistory is one past attempt inside a course-progress entry.
type AttemptHistory struct {
	AttemptID   int64      `json:"attemptId"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Score       *int       `json:"score,omitempty"`
	Status      string     `json:"status"`
	BandScore   *float64   `json:"bandScore,omitempty"`
}

// CourseProgress aggregates all attempts for one course key; the representative
// attempt is the most recently started one.
type CourseProgress struct {
	AttemptID        int64            `json:"attemptId"`
	ExamSource       string           `json:"examSource"`
	TestNumber       string           `json:"testNumber"`
	Skill            string           `json:"skill"`
	TotalQuestions   int              `json:"totalQuestions"`
	AnswersAttempted int              `json:"answersAttempted"`
	CorrectAnswers   int              `json:"correctAnswers"`
	LastAttempt      *time.Time       `json:"lastAttempt,omitempty"`
	CompletionRate   float64          `json:"completionRate"`
	Status           string           `json:"status"`
	BandScore        *float64         `json:"bandScore,omitempty"`
	History          []AttemptHistory `json:"history"`
}

// SkillSummary aggregates all of a user's answers by the skill of the owning
// question's section.
type SkillSummary struct {
	Skill            string  `json:"skill"`
	Attempts         int     `json:"attempts"`
	CorrectAnswers   int     `json:"correctAnswers"`
	IncorrectAnswers int     `json:"incorrectAnswers"`
	Accuracy         float64 `json:"accuracy"`
}

// UserStats is the overall answer tally across all attempts.
type UserStats struct {
	TestsCompleted  int     `json:"testsCompleted"`
	TotalAnswers    int     `json:"totalAnswers"`
	CorrectAnswers  int     `json:"correctAnswers"`
	OverallAccuracy float64 `json:"accuracy"`
}

// RecentActivity is one answered question in the activity feed.
type RecentActivity struct {
	QuestionID  int64     `json:"questionId"`
	SubmittedAt time.Time `json:"submittedAt"`
	Correct     *bool     `json:"correct,omitempty"`
}

// Goal is one target band rendered for the dashboard.
type Goal struct {
	Label      string     `json:"label"`
	Value      string     `json:"value"`
	TargetDate *time.Time `json:"targetDate,omitempty"`
}

// DashboardSummary is the full aggregated view for one user.
type DashboardSummary struct {
	Profile        *Profile         `json:"profile,omitempty"`
	Stats          UserStats        `json:"stats"`
	RecentActivity []RecentActivity `json:"recentActivity"`
	SkillSummary   []SkillSummary   `json:"skillSummary"`
	CourseProgress []CourseProgress `json:"courseProgress"`
	TotalCourses   int              `json:"totalCourses"`
	Page           int              `json:"page"`
	PageSize       int              `json:"pageSize"`
	Goals          []Goal           `json:"goals"`
}
