package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPendingValidationNotFound = errors.New("pending validation not found")

type PendingValidation struct {
	ID               uint      `gorm:"primaryKey"`
	EventID          string    `gorm:"size:36;not null;index:idx_pending_lookup"`
	UserID           string    `gorm:"size:36;not null;index:idx_pending_lookup"`
	VerificationHash string    `gorm:"size:64;not null;index:idx_pending_lookup"`
	CreatedAt        time.Time `gorm:"not null;index"`
}

type PendingValidationDAO struct {
	db *gorm.DB
}

func NewPendingValidationDAO(db *gorm.DB) *PendingValidationDAO {
	return &PendingValidationDAO{
		db: db,
	}
}

const pendingValidationBatchSize = 100

func (d *PendingValidationDAO) InsertBatch(ctx context.Context, entries []PendingValidation) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	result := d.db.WithContext(ctx).CreateInBatches(&entries, pendingValidationBatchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// MatchAndConsume deletes one entry matching the tuple and returns it. The
// row is locked so two concurrent claims cannot consume the same entry.
func (d *PendingValidationDAO) MatchAndConsume(ctx context.Context, eventID, userID, hash string) (PendingValidation, error) {
	var found PendingValidation

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("event_id = ? AND user_id = ? AND verification_hash = ?", eventID, userID, hash).
			Order("id ASC").
			First(&found)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrPendingValidationNotFound
			}
			return result.Error
		}

		return tx.Delete(&PendingValidation{}, found.ID).Error
	})
	if err != nil {
		return PendingValidation{}, err
	}

	return found, nil
}

// Restore puts back an entry removed by MatchAndConsume, keeping its id and
// creation time.
func (d *PendingValidationDAO) Restore(ctx context.Context, entry PendingValidation) error {
	return d.db.WithContext(ctx).Create(&entry).Error
}

func (d *PendingValidationDAO) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("created_at < ?", threshold).
		Delete(&PendingValidation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
