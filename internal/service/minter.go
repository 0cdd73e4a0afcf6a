package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventpass/eventpass-api/internal/domain"
)

type CredentialRepository interface {
	Exists(ctx context.Context, key domain.CredentialKey) (bool, error)
	Create(ctx context.Context, record domain.CredentialRecord) (domain.CredentialRecord, error)
}

type BadgeFinder interface {
	FindByID(ctx context.Context, id string) (domain.Event, error)
	FindBadgeByID(ctx context.Context, id string) (domain.BadgeTemplate, error)
	FindFirstBadge(ctx context.Context, eventID string) (domain.BadgeTemplate, error)
}

// credentialPayload is stored as the record payload.
type credentialPayload struct {
	Path    domain.ClaimPath `json:"path"`
	Details any              `json:"details,omitempty"`
}

// minter owns the uniqueness check and the record creation shared by every
// claim path.
type minter struct {
	events      BadgeFinder
	credentials CredentialRepository
	now         func() time.Time
}

func newMinter(events BadgeFinder, credentials CredentialRepository) *minter {
	return &minter{
		events:      events,
		credentials: credentials,
		now:         time.Now,
	}
}

// resolveBadge returns badgeID when set, otherwise the first template of the
// event. The badge must belong to the event.
func (m *minter) resolveBadge(ctx context.Context, eventID, badgeID string) (domain.BadgeTemplate, error) {
	if badgeID == "" {
		badge, err := m.events.FindFirstBadge(ctx, eventID)
		if err != nil {
			return domain.BadgeTemplate{}, fmt.Errorf("m.events.FindFirstBadge -> %w", err)
		}
		return badge, nil
	}

	badge, err := m.events.FindBadgeByID(ctx, badgeID)
	if err != nil {
		return domain.BadgeTemplate{}, fmt.Errorf("m.events.FindBadgeByID -> %w", err)
	}
	if badge.EventID != eventID {
		return domain.BadgeTemplate{}, ErrBadgeNotFound
	}

	return badge, nil
}

func (m *minter) ensureUnclaimed(ctx context.Context, key domain.CredentialKey) error {
	exists, err := m.credentials.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("m.credentials.Exists -> %w", err)
	}
	if exists {
		return domain.ErrAlreadyClaimed
	}

	return nil
}

func (m *minter) mint(ctx context.Context, key domain.CredentialKey, path domain.ClaimPath, details any) (domain.CredentialRecord, error) {
	if err := m.ensureUnclaimed(ctx, key); err != nil {
		return domain.CredentialRecord{}, err
	}

	payload, err := json.Marshal(credentialPayload{Path: path, Details: details})
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("json.Marshal -> %w", err)
	}

	issuedAt := m.now().UTC()
	created, err := m.credentials.Create(ctx, domain.CredentialRecord{
		UserID:          key.UserID,
		EventID:         key.EventID,
		BadgeTemplateID: key.BadgeTemplateID,
		IssuedAt:        issuedAt,
		Payload:         string(payload),
		Hash:            domain.IntegrityHash(key, issuedAt, path),
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			return domain.CredentialRecord{}, domain.ErrAlreadyClaimed
		}
		return domain.CredentialRecord{}, fmt.Errorf("m.credentials.Create -> %w", err)
	}

	return created, nil
}
