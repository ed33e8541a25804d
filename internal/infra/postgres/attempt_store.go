package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ielts-practice-service/internal/domain"
)

// AttemptStore persists attempts and answers in Postgres via bun. Multi-step
// operations run inside a transaction so the serialization requirements hold
// across service instances, not just within one process.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// FindOrCreate takes a per-key advisory lock for the duration of the
// read-then-create decision, so two concurrent starts for the same course key
// cannot both observe "no in-progress attempt".
func (s *AttemptStore) FindOrCreate(ctx context.Context, key domain.AttemptKey, startedAt time.Time) (domain.Attempt, bool, error) {
	var result domain.Attempt
	created := false

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		lockKey := strings.Join([]string{key.UserID.String(), key.ExamSource, key.TestNumber, key.Skill}, "|")
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", lockKey); err != nil {
			return fmt.Errorf("acquire attempt lock: %w", err)
		}

		latest := new(attemptRow)
		err := tx.NewSelect().Model(latest).
			Where("user_id = ?", key.UserID).
			Where("exam_source = ?", key.ExamSource).
			Where("test_number = ?", key.TestNumber).
			Where("skill = ?", key.Skill).
			OrderExpr("started_at DESC").
			Limit(1).
			Scan(ctx)
		if err == nil && latest.Status == domain.StatusInProgress {
			result = latest.toDomain()
			return nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find latest attempt: %w", err)
		}

		fresh := &attemptRow{
			UserID:     key.UserID,
			ExamSource: key.ExamSource,
			TestNumber: key.TestNumber,
			Skill:      key.Skill,
			Status:     domain.StatusInProgress,
			StartedAt:  startedAt,
		}
		if _, err := tx.NewInsert().Model(fresh).Returning("id").Exec(ctx); err != nil {
			return fmt.Errorf("create attempt: %w", err)
		}
		result = fresh.toDomain()
		created = true
		return nil
	})
	if err != nil {
		return domain.Attempt{}, false, err
	}
	return result, created, nil
}

func (s *AttemptStore) Get(ctx context.Context, id int64) (domain.Attempt, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).Where("ta.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) Update(ctx context.Context, attempt domain.Attempt) error {
	res, err := s.db.NewUpdate().Model(attemptToRow(attempt)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

// ReplaceAnswers updates the attempt row and swaps its answer set within one
// transaction; the delete is visible to the insert, so the unique
// (attempt_id, question_id) constraint cannot trip on re-submission.
func (s *AttemptStore) ReplaceAnswers(ctx context.Context, attempt domain.Attempt, answers []domain.Answer) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(attemptToRow(attempt)).WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("update attempt: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return domain.ErrAttemptNotFound
		}

		if _, err := tx.NewDelete().Model((*answerRow)(nil)).Where("attempt_id = ?", attempt.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		if len(answers) == 0 {
			return nil
		}
		rows := make([]answerRow, 0, len(answers))
		for _, ans := range answers {
			row := answerToRow(ans)
			row.ID = 0
			row.AttemptID = attempt.ID
			rows = append(rows, row)
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
		return nil
	})
}

func (s *AttemptStore) Answers(ctx context.Context, attemptID int64) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("attempt_id = ?", attemptID).
		OrderExpr("question_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answers := make([]domain.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.toDomain())
	}
	return answers, nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attempts := make([]domain.Attempt, 0, len(rows))
	for i := range rows {
		attempts = append(attempts, rows[i].toDomain())
	}
	return attempts, nil
}

func (s *AttemptStore) AnswersByUser(ctx context.Context, userID uuid.UUID) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("ua.user_id = ?", userID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user answers: %w", err)
	}
	answers := make([]domain.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.toDomain())
	}
	return answers, nil
}

func (s *AttemptStore) Delete(ctx context.Context, attemptID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*answerRow)(nil)).Where("attempt_id = ?", attemptID).Exec(ctx); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		res, err := tx.NewDelete().Model((*attemptRow)(nil)).Where("id = ?", attemptID).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete attempt: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return domain.ErrAttemptNotFound
		}
		return nil
	})
}
