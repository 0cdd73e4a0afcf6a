package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/repository/dao"
)

type CredentialDAO interface {
	Exists(ctx context.Context, userID, eventID, badgeID string) (bool, error)
	InsertUnique(ctx context.Context, record dao.CredentialRecord) (dao.CredentialRecord, error)
	FindByUserID(ctx context.Context, userID string) ([]dao.CredentialRecord, error)
}

type CredentialRepository struct {
	dao CredentialDAO
}

func NewCredentialRepository(dao CredentialDAO) *CredentialRepository {
	return &CredentialRepository{
		dao: dao,
	}
}

func (r *CredentialRepository) Exists(ctx context.Context, key domain.CredentialKey) (bool, error) {
	exists, err := r.dao.Exists(ctx, key.UserID, key.EventID, key.BadgeTemplateID)
	if err != nil {
		return false, fmt.Errorf("r.dao.Exists -> %w", err)
	}

	return exists, nil
}

// Create inserts the record. An existing record for the same tuple yields
// domain.ErrAlreadyClaimed.
func (r *CredentialRepository) Create(ctx context.Context, record domain.CredentialRecord) (domain.CredentialRecord, error) {
	created, err := r.dao.InsertUnique(ctx, dao.CredentialRecord{
		UserID:          record.UserID,
		EventID:         record.EventID,
		BadgeTemplateID: record.BadgeTemplateID,
		IssuedAt:        record.IssuedAt,
		Payload:         record.Payload,
		Hash:            record.Hash,
	})
	if err != nil {
		if errors.Is(err, dao.ErrCredentialExists) {
			return domain.CredentialRecord{}, domain.ErrAlreadyClaimed
		}

		return domain.CredentialRecord{}, fmt.Errorf("r.dao.InsertUnique -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *CredentialRepository) FindByUserID(ctx context.Context, userID string) ([]domain.CredentialRecord, error) {
	found, err := r.dao.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByUserID -> %w", err)
	}

	records := make([]domain.CredentialRecord, 0, len(found))
	for _, c := range found {
		records = append(records, r.daoToDomain(c))
	}

	return records, nil
}

func (r *CredentialRepository) daoToDomain(c dao.CredentialRecord) domain.CredentialRecord {
	return domain.CredentialRecord{
		ID:              c.ID,
		UserID:          c.UserID,
		EventID:         c.EventID,
		BadgeTemplateID: c.BadgeTemplateID,
		IssuedAt:        c.IssuedAt,
		Payload:         c.Payload,
		Hash:            c.Hash,
	}
}
