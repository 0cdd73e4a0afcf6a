package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/envelope"
)

type LedgerMatcher interface {
	MatchAndConsume(ctx context.Context, eventID, userID, hash string) (domain.PendingValidation, error)
	Restore(ctx context.Context, entry domain.PendingValidation) error
}

// SecureChannel redeems envelopes sealed offline by organizer devices.
type SecureChannel struct {
	*minter
	ledger LedgerMatcher
}

func NewSecureChannel(events BadgeFinder, credentials CredentialRepository, ledger LedgerMatcher) *SecureChannel {
	return &SecureChannel{
		minter: newMinter(events, credentials),
		ledger: ledger,
	}
}

// Redeem opens env with the event session key and mints the sealed badge
// once the organizer's commitment for claimantID is found in the ledger.
//
// An existing credential is reported as domain.ErrAlreadyClaimed before the
// ledger is touched. A missing commitment is domain.ErrOrganizerNotSynced.
// The commitment is put back when minting fails for any other reason than an
// existing credential.
func (c *SecureChannel) Redeem(ctx context.Context, claimantID, eventID, env string) (domain.CredentialRecord, error) {
	event, err := c.events.FindByID(ctx, eventID)
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("c.events.FindByID -> %w", err)
	}
	if !event.HasSessionKey() {
		return domain.CredentialRecord{}, domain.ErrMissingSessionKey
	}

	var payload envelope.Payload
	if err = envelope.Open(env, event.SessionKey, &payload); err != nil {
		return domain.CredentialRecord{}, err
	}
	if payload.BadgeID == "" {
		return domain.CredentialRecord{}, fmt.Errorf("%w: envelope carries no badge", domain.ErrDecryption)
	}

	badge, err := c.resolveBadge(ctx, eventID, payload.BadgeID)
	if err != nil {
		return domain.CredentialRecord{}, err
	}

	key := domain.CredentialKey{UserID: claimantID, EventID: eventID, BadgeTemplateID: badge.ID}
	if err = c.ensureUnclaimed(ctx, key); err != nil {
		return domain.CredentialRecord{}, err
	}

	hash := envelope.CommitmentHash(env, claimantID)
	entry, err := c.ledger.MatchAndConsume(ctx, eventID, claimantID, hash)
	if err != nil {
		return domain.CredentialRecord{}, err
	}

	record, err := c.mint(ctx, key, domain.ClaimSecure, map[string]any{
		"salt":          payload.Salt,
		"sealed_at":     payload.Timestamp,
		"validation_id": entry.ID,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyClaimed) {
			c.restore(entry, err)
		}
		return domain.CredentialRecord{}, err
	}

	zap.L().Info("secure claim redeemed",
		zap.String("event_id", eventID),
		zap.String("user_id", claimantID),
		zap.String("badge_id", badge.ID))

	return record, nil
}

func (c *SecureChannel) restore(entry domain.PendingValidation, cause error) {
	// The request ctx may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.ledger.Restore(ctx, entry); err != nil {
		zap.L().Error("pending validation lost after failed mint",
			zap.String("event_id", entry.EventID),
			zap.String("user_id", entry.UserID),
			zap.NamedError("mint_error", cause),
			zap.Error(err))
		return
	}
	zap.L().Warn("secure claim failed, pending validation restored",
		zap.String("event_id", entry.EventID), zap.Error(cause))
}
