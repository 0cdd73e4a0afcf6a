// Package organizer implements badge issuance on an organizer device.
package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/claimcode"
	"github.com/eventpass/eventpass-api/internal/client/api"
	"github.com/eventpass/eventpass-api/internal/client/outbox"
	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/envelope"
	"github.com/eventpass/eventpass-api/internal/proof"
)

var ErrNoSessionKey = errors.New("no session key for event, run the handshake first")

type API interface {
	IssueToken(ctx context.Context, eventID string) (api.Token, error)
	Handshake(ctx context.Context, eventID string) (string, error)
	SyncValidations(ctx context.Context, validations []api.Validation) (int, error)
}

type Outbox interface {
	Enqueue(ctx context.Context, e outbox.Entry) (bool, error)
}

type Issuer struct {
	api    API
	outbox Outbox
	logger *zap.Logger
	now    func() time.Time
}

func NewIssuer(client API, box Outbox) *Issuer {
	return &Issuer{
		api:    client,
		outbox: box,
		logger: zap.L(),
		now:    time.Now,
	}
}

func (i *Issuer) WithLogger(l *zap.Logger) *Issuer {
	i.logger = l
	return i
}

func (i *Issuer) IssueOnline(ctx context.Context, eventID string) (api.Token, error) {
	token, err := i.api.IssueToken(ctx, eventID)
	if err != nil {
		return api.Token{}, fmt.Errorf("i.api.IssueToken -> %w", err)
	}
	return token, nil
}

// IssueStatic returns a pre-shared code anyone can redeem once per user.
func (i *Issuer) IssueStatic(eventID, badgeID string) string {
	return claimcode.NewStatic(eventID, badgeID).Encode()
}

// Handshake rotates the session key of eventID. Envelopes sealed with the
// previous key stop being redeemable.
func (i *Issuer) Handshake(ctx context.Context, eventID string) (string, error) {
	key, err := i.api.Handshake(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("i.api.Handshake -> %w", err)
	}
	i.logger.Info("session key rotated", zap.String("event_id", eventID))
	return key, nil
}

// SecureIssue is the result of a secure offline issuance.
type SecureIssue struct {
	// Code is the scannable secure claim for the participant.
	Code       string
	Envelope   string
	Validation api.Validation
	// Synced is false when the validation was queued in the outbox.
	Synced bool
}

// IssueSecure seals a badge grant for participantID with keyHex and uploads
// the matching validation. When the upload fails the validation is queued
// and the code is still returned.
func (i *Issuer) IssueSecure(ctx context.Context, eventID, badgeID, participantID, keyHex string) (SecureIssue, error) {
	if keyHex == "" {
		return SecureIssue{}, ErrNoSessionKey
	}

	now := i.now()
	sealed, err := envelope.Seal(envelope.Payload{
		BadgeID:   badgeID,
		Salt:      uuid.NewString(),
		Timestamp: now.UnixMilli(),
	}, keyHex)
	if err != nil {
		return SecureIssue{}, fmt.Errorf("envelope.Seal -> %w", err)
	}

	issue := SecureIssue{
		Code:     claimcode.NewSecure(eventID, sealed).Encode(),
		Envelope: sealed,
		Validation: api.Validation{
			EventID:   eventID,
			UserID:    participantID,
			Hash:      envelope.CommitmentHash(sealed, participantID),
			Timestamp: now.UnixMilli(),
		},
	}

	_, syncErr := i.api.SyncValidations(ctx, []api.Validation{issue.Validation})
	if syncErr == nil {
		issue.Synced = true
		return issue, nil
	}
	i.logger.Info("instant sync failed, queueing validation",
		zap.String("event_id", eventID),
		zap.Error(syncErr),
	)

	payload, err := json.Marshal(issue.Validation)
	if err != nil {
		return SecureIssue{}, fmt.Errorf("encode validation: %w", err)
	}
	if _, err := i.outbox.Enqueue(ctx, outbox.Entry{
		Payload:    string(payload),
		Kind:       outbox.KindValidation,
		Context:    eventID,
		CapturedAt: now,
	}); err != nil {
		return SecureIssue{}, fmt.Errorf("i.outbox.Enqueue -> %w", err)
	}
	return issue, nil
}

// Submit uploads one queued validation.
func (i *Issuer) Submit(ctx context.Context, e outbox.Entry) error {
	var v api.Validation
	if err := json.Unmarshal([]byte(e.Payload), &v); err != nil {
		return fmt.Errorf("decode queued validation: %w", err)
	}
	if _, err := i.api.SyncValidations(ctx, []api.Validation{v}); err != nil {
		return fmt.Errorf("i.api.SyncValidations -> %w", err)
	}
	return nil
}

// VerifyWin checks a participant's win code on the organizer device. The
// returned proof names the badge the team hunted, if any.
func (i *Issuer) VerifyWin(eventID, raw string) (claimcode.WinProof, error) {
	code, err := claimcode.Parse(raw)
	if err != nil {
		return claimcode.WinProof{}, err
	}
	if code.Kind != claimcode.KindSecure || !code.Secure.IsWinProof() {
		return claimcode.WinProof{}, domain.ErrInvalidWinProof
	}
	if code.Secure.EventID != eventID {
		return claimcode.WinProof{}, domain.ErrEventMismatch
	}

	win, err := code.Secure.WinProof()
	if err != nil {
		return claimcode.WinProof{}, domain.ErrInvalidWinProof
	}
	if !proof.VerifyComplete(eventID, win.Proofs, win.BadgeID) {
		return claimcode.WinProof{}, domain.ErrInvalidWinProof
	}
	return win, nil
}
