package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/repository/dao"
)

var ErrPendingValidationNotFound = dao.ErrPendingValidationNotFound

type PendingValidationDAO interface {
	InsertBatch(ctx context.Context, entries []dao.PendingValidation) (int, error)
	MatchAndConsume(ctx context.Context, eventID, userID, hash string) (dao.PendingValidation, error)
	Restore(ctx context.Context, entry dao.PendingValidation) error
	DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}

type LedgerRepository struct {
	dao PendingValidationDAO
}

func NewLedgerRepository(dao PendingValidationDAO) *LedgerRepository {
	return &LedgerRepository{
		dao: dao,
	}
}

func (r *LedgerRepository) InsertBatch(ctx context.Context, entries []domain.PendingValidation) (int, error) {
	rows := make([]dao.PendingValidation, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, dao.PendingValidation{
			EventID:          e.EventID,
			UserID:           e.UserID,
			VerificationHash: e.Hash,
			CreatedAt:        e.CreatedAt,
		})
	}

	n, err := r.dao.InsertBatch(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("r.dao.InsertBatch -> %w", err)
	}

	return n, nil
}

func (r *LedgerRepository) MatchAndConsume(ctx context.Context, eventID, userID, hash string) (domain.PendingValidation, error) {
	found, err := r.dao.MatchAndConsume(ctx, eventID, userID, hash)
	if err != nil {
		return domain.PendingValidation{}, fmt.Errorf("r.dao.MatchAndConsume -> %w", err)
	}

	return domain.PendingValidation{
		ID:        found.ID,
		EventID:   found.EventID,
		UserID:    found.UserID,
		Hash:      found.VerificationHash,
		CreatedAt: found.CreatedAt,
	}, nil
}

func (r *LedgerRepository) Restore(ctx context.Context, entry domain.PendingValidation) error {
	err := r.dao.Restore(ctx, dao.PendingValidation{
		ID:               entry.ID,
		EventID:          entry.EventID,
		UserID:           entry.UserID,
		VerificationHash: entry.Hash,
		CreatedAt:        entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("r.dao.Restore -> %w", err)
	}

	return nil
}

func (r *LedgerRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	n, err := r.dao.DeleteOlderThan(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("r.dao.DeleteOlderThan -> %w", err)
	}

	return n, nil
}
