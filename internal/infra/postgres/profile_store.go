package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ielts-practice-service/internal/domain"
)

// ProfileStore reads profiles and goal targets maintained by the identity and
// settings surfaces.
type ProfileStore struct {
	db *bun.DB
}

func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Profile(ctx context.Context, userID uuid.UUID) (domain.Profile, error) {
	row := new(profileRow)
	err := s.db.NewSelect().Model(row).Where("p.id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return domain.Profile{ID: row.ID, Username: row.Username}, nil
}

func (s *ProfileStore) Target(ctx context.Context, userID uuid.UUID) (*domain.Target, error) {
	row := new(targetRow)
	err := s.db.NewSelect().Model(row).Where("t.user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	return &domain.Target{
		UserID:    row.UserID,
		ExamName:  row.ExamName,
		ExamDate:  row.ExamDate,
		Listening: row.Listening,
		Reading:   row.Reading,
		Writing:   row.Writing,
		Speaking:  row.Speaking,
	}, nil
}
