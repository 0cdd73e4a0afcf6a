package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrCredentialExists = errors.New("credential already exists")

type CredentialRecord struct {
	ID              string    `gorm:"primaryKey;size:36"`
	UserID          string    `gorm:"size:36;not null;uniqueIndex:uni_credential_tuple"`
	EventID         string    `gorm:"size:36;not null;uniqueIndex:uni_credential_tuple"`
	BadgeTemplateID string    `gorm:"size:36;not null;uniqueIndex:uni_credential_tuple"`
	IssuedAt        time.Time `gorm:"not null"`
	Payload         string    `gorm:"type:text;not null"`
	Hash            string    `gorm:"size:64;not null"`
}

func (r *CredentialRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type CredentialDAO struct {
	db *gorm.DB
}

func NewCredentialDAO(db *gorm.DB) *CredentialDAO {
	return &CredentialDAO{
		db: db,
	}
}

func (d *CredentialDAO) Exists(ctx context.Context, userID, eventID, badgeID string) (bool, error) {
	var count int64
	result := d.db.WithContext(ctx).
		Model(&CredentialRecord{}).
		Where("user_id = ? AND event_id = ? AND badge_template_id = ?", userID, eventID, badgeID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// InsertUnique checks for an existing record of the same tuple and inserts
// in one transaction. The unique index catches the race the check misses.
func (d *CredentialDAO) InsertUnique(ctx context.Context, record CredentialRecord) (CredentialRecord, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		result := tx.Model(&CredentialRecord{}).
			Where("user_id = ? AND event_id = ? AND badge_template_id = ?",
				record.UserID, record.EventID, record.BadgeTemplateID).
			Count(&count)
		if result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return ErrCredentialExists
		}

		return tx.Create(&record).Error
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) &&
			pgErr.Code == pgerrcode.UniqueViolation &&
			strings.Contains(pgErr.Message, "uni_credential_tuple") {
			return CredentialRecord{}, ErrCredentialExists
		}

		return CredentialRecord{}, err
	}

	return record, nil
}

func (d *CredentialDAO) FindByUserID(ctx context.Context, userID string) ([]CredentialRecord, error) {
	var records []CredentialRecord
	result := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}
