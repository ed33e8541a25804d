package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ielts-practice-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:test_attempts,alias:ta"`

	ID          int64      `bun:"id,pk,autoincrement"`
	UserID      uuid.UUID  `bun:"user_id,type:uuid,notnull"`
	ExamSource  string     `bun:"exam_source,notnull"`
	TestNumber  string     `bun:"test_number,notnull"`
	Skill       string     `bun:"skill,notnull"`
	Status      string     `bun:"status,notnull"`
	Score       *int       `bun:"score"`
	StartedAt   time.Time  `bun:"started_at,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`
	TimeLeft    *int       `bun:"time_left"`
	CurrentPart *int       `bun:"current_part"`
}

func attemptToRow(a domain.Attempt) *attemptRow {
	return &attemptRow{
		ID:          a.ID,
		UserID:      a.UserID,
		ExamSource:  a.ExamSource,
		TestNumber:  a.TestNumber,
		Skill:       a.Skill,
		Status:      a.Status,
		Score:       a.Score,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
		TimeLeft:    a.TimeLeft,
		CurrentPart: a.CurrentPart,
	}
}

func (r *attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:          r.ID,
		UserID:      r.UserID,
		ExamSource:  r.ExamSource,
		TestNumber:  r.TestNumber,
		Skill:       r.Skill,
		Status:      r.Status,
		Score:       r.Score,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		TimeLeft:    r.TimeLeft,
		CurrentPart: r.CurrentPart,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:user_answers,alias:ua"`

	ID          int64           `bun:"id,pk,autoincrement"`
	UserID      uuid.UUID       `bun:"user_id,type:uuid,notnull"`
	AttemptID   int64           `bun:"attempt_id,notnull"`
	QuestionID  int64           `bun:"question_id,notnull"`
	Content     json.RawMessage `bun:"answer_content,type:jsonb,notnull"`
	IsCorrect   *bool           `bun:"is_correct"`
	SubmittedAt time.Time       `bun:"submitted_at,notnull"`
}

func answerToRow(a domain.Answer) answerRow {
	return answerRow{
		ID:          a.ID,
		UserID:      a.UserID,
		AttemptID:   a.AttemptID,
		QuestionID:  a.QuestionID,
		Content:     a.Content,
		IsCorrect:   a.IsCorrect,
		SubmittedAt: a.SubmittedAt,
	}
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:          r.ID,
		UserID:      r.UserID,
		AttemptID:   r.AttemptID,
		QuestionID:  r.QuestionID,
		Content:     r.Content,
		IsCorrect:   r.IsCorrect,
		SubmittedAt: r.SubmittedAt,
	}
}

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID       uuid.UUID `bun:"id,pk,type:uuid"`
	Username string    `bun:"username,notnull"`
}

type targetRow struct {
	bun.BaseModel `bun:"table:targets,alias:t"`

	UserID    uuid.UUID  `bun:"user_id,pk,type:uuid"`
	ExamName  string     `bun:"exam_name,nullzero"`
	ExamDate  *time.Time `bun:"exam_date"`
	Listening *float64   `bun:"listening"`
	Reading   *float64   `bun:"reading"`
	Writing   *float64   `bun:"writing"`
	Speaking  *float64   `bun:"speaking"`
}
