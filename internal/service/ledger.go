package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/repository"
)

var ErrPendingValidationNotFound = repository.ErrPendingValidationNotFound

type LedgerRepository interface {
	InsertBatch(ctx context.Context, entries []domain.PendingValidation) (int, error)
	MatchAndConsume(ctx context.Context, eventID, userID, hash string) (domain.PendingValidation, error)
	Restore(ctx context.Context, entry domain.PendingValidation) error
	DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}

// LedgerService stores commitment hashes uploaded by organizer devices.
type LedgerService struct {
	repo      LedgerRepository
	retention time.Duration
	now       func() time.Time
}

func NewLedgerService(repo LedgerRepository, retention time.Duration) *LedgerService {
	if retention <= 0 {
		retention = domain.PendingValidationRetention
	}

	return &LedgerService{
		repo:      repo,
		retention: retention,
		now:       time.Now,
	}
}

// Sync appends every entry stamped with the server time, which the
// retention sweep runs on. Duplicates are kept.
func (s *LedgerService) Sync(ctx context.Context, entries []domain.PendingValidation) (int, error) {
	now := s.now()
	for i := range entries {
		entries[i].CreatedAt = now
	}

	n, err := s.repo.InsertBatch(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("s.repo.InsertBatch -> %w", err)
	}

	return n, nil
}

// MatchAndConsume removes and returns one entry for the tuple. A miss is
// reported as domain.ErrOrganizerNotSynced.
func (s *LedgerService) MatchAndConsume(ctx context.Context, eventID, userID, hash string) (domain.PendingValidation, error) {
	entry, err := s.repo.MatchAndConsume(ctx, eventID, userID, hash)
	if err != nil {
		if errors.Is(err, ErrPendingValidationNotFound) {
			return domain.PendingValidation{}, domain.ErrOrganizerNotSynced
		}

		return domain.PendingValidation{}, fmt.Errorf("s.repo.MatchAndConsume -> %w", err)
	}

	return entry, nil
}

// Restore puts back an entry returned by MatchAndConsume when nothing was
// minted for it.
func (s *LedgerService) Restore(ctx context.Context, entry domain.PendingValidation) error {
	if err := s.repo.Restore(ctx, entry); err != nil {
		return fmt.Errorf("s.repo.Restore -> %w", err)
	}

	return nil
}

// Purge deletes entries created before olderThan.
func (s *LedgerService) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := s.repo.DeleteOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("s.repo.DeleteOlderThan -> %w", err)
	}

	return n, nil
}

// RunRetentionSweep purges entries past the retention window every interval
// until ctx is done.
func (s *LedgerService) RunRetentionSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Purge(ctx, s.now().Add(-s.retention))
			if err != nil {
				zap.L().Error("pending validation sweep failed", zap.Error(err))
				continue
			}
			zap.L().Info("pending validation sweep complete", zap.Int64("deleted", n))
		}
	}
}
