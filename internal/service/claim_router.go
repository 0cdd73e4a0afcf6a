package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/claimcode"
	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/proof"
)

var ErrMalformedClaim = claimcode.ErrMalformed

type TokenRedeemer interface {
	Redeem(ctx context.Context, token string) (domain.EphemeralToken, error)
	Restore(t domain.EphemeralToken)
}

type EnvelopeRedeemer interface {
	Redeem(ctx context.Context, claimantID, eventID, env string) (domain.CredentialRecord, error)
}

// ClaimRouter classifies a scanned claim and dispatches it to the matching
// issuance path.
type ClaimRouter struct {
	*minter
	tokens TokenRedeemer
	secure EnvelopeRedeemer
}

func NewClaimRouter(events BadgeFinder, credentials CredentialRepository, tokens TokenRedeemer, secure EnvelopeRedeemer) *ClaimRouter {
	return &ClaimRouter{
		minter: newMinter(events, credentials),
		tokens: tokens,
		secure: secure,
	}
}

// Claim handles a raw claim string: a secure code, a static code or an
// online token, in that order.
func (r *ClaimRouter) Claim(ctx context.Context, raw, claimantID string) (domain.CredentialRecord, error) {
	code, err := claimcode.Parse(raw)
	if err != nil {
		return domain.CredentialRecord{}, err
	}

	switch code.Kind {
	case claimcode.KindSecure:
		return r.claimSecure(ctx, code.Secure, claimantID)
	case claimcode.KindStatic:
		return r.claimStatic(ctx, code.Static, claimantID)
	default:
		return r.claimOnline(ctx, code.Raw, claimantID)
	}
}

// ClaimSecure handles the split form of a secure claim.
func (r *ClaimRouter) ClaimSecure(ctx context.Context, eventID, blob, claimantID string) (domain.CredentialRecord, error) {
	return r.claimSecure(ctx, claimcode.NewSecure(eventID, blob), claimantID)
}

func (r *ClaimRouter) claimSecure(ctx context.Context, code claimcode.Secure, claimantID string) (domain.CredentialRecord, error) {
	if code.IsWinProof() {
		return r.claimWin(ctx, code, claimantID)
	}

	record, err := r.secure.Redeem(ctx, claimantID, code.EventID, code.Blob)
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("r.secure.Redeem -> %w", err)
	}

	return record, nil
}

func (r *ClaimRouter) claimWin(ctx context.Context, code claimcode.Secure, claimantID string) (domain.CredentialRecord, error) {
	win, err := code.WinProof()
	if err != nil {
		return domain.CredentialRecord{}, domain.ErrInvalidWinProof
	}
	if !win.HasMember(claimantID) {
		return domain.CredentialRecord{}, domain.ErrNotTeamMember
	}
	if !proof.VerifyComplete(code.EventID, win.Proofs, win.BadgeID) {
		return domain.CredentialRecord{}, domain.ErrInvalidWinProof
	}

	if _, err = r.events.FindByID(ctx, code.EventID); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("r.events.FindByID -> %w", err)
	}
	badge, err := r.resolveBadge(ctx, code.EventID, win.BadgeID)
	if err != nil {
		return domain.CredentialRecord{}, err
	}

	key := domain.CredentialKey{UserID: claimantID, EventID: code.EventID, BadgeTemplateID: badge.ID}
	return r.mint(ctx, key, domain.ClaimCoop, map[string]any{
		"team":   win.Team,
		"won_at": win.Timestamp,
	})
}

func (r *ClaimRouter) claimStatic(ctx context.Context, code claimcode.Static, claimantID string) (domain.CredentialRecord, error) {
	if _, err := r.events.FindByID(ctx, code.EventID); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("r.events.FindByID -> %w", err)
	}
	badge, err := r.resolveBadge(ctx, code.EventID, code.BadgeID)
	if err != nil {
		return domain.CredentialRecord{}, err
	}

	key := domain.CredentialKey{UserID: claimantID, EventID: code.EventID, BadgeTemplateID: badge.ID}
	return r.mint(ctx, key, domain.ClaimStatic, nil)
}

// claimOnline consumes the token first. If nothing gets minted the token is
// handed back so the participant can retry before it expires.
func (r *ClaimRouter) claimOnline(ctx context.Context, token, claimantID string) (domain.CredentialRecord, error) {
	t, err := r.tokens.Redeem(ctx, token)
	if err != nil {
		return domain.CredentialRecord{}, err
	}

	record, err := r.mintOnline(ctx, t, claimantID)
	if err != nil {
		r.tokens.Restore(t)
		if !errors.Is(err, domain.ErrAlreadyClaimed) {
			zap.L().Warn("online claim failed, token restored",
				zap.String("event_id", t.EventID), zap.Error(err))
		}
		return domain.CredentialRecord{}, err
	}

	return record, nil
}

func (r *ClaimRouter) mintOnline(ctx context.Context, t domain.EphemeralToken, claimantID string) (domain.CredentialRecord, error) {
	badge, err := r.resolveBadge(ctx, t.EventID, "")
	if err != nil {
		return domain.CredentialRecord{}, err
	}

	key := domain.CredentialKey{UserID: claimantID, EventID: t.EventID, BadgeTemplateID: badge.ID}
	return r.mint(ctx, key, domain.ClaimOnline, nil)
}
