// Package participant implements badge redemption on a participant device.
package participant

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/claimcode"
	"github.com/eventpass/eventpass-api/internal/client/outbox"
	"github.com/eventpass/eventpass-api/internal/coop"
	"github.com/eventpass/eventpass-api/internal/domain"
)

type API interface {
	Claim(ctx context.Context, raw string) (domain.CredentialRecord, error)
}

type Outbox interface {
	Enqueue(ctx context.Context, e outbox.Entry) (bool, error)
}

type Redeemer struct {
	api    API
	outbox Outbox
	logger *zap.Logger
	now    func() time.Time
}

func NewRedeemer(client API, box Outbox) *Redeemer {
	return &Redeemer{
		api:    client,
		outbox: box,
		logger: zap.L(),
		now:    time.Now,
	}
}

func (r *Redeemer) WithLogger(l *zap.Logger) *Redeemer {
	r.logger = l
	return r
}

// Result of a redemption. Exactly one of Record and Queued is set.
type Result struct {
	Record *domain.CredentialRecord
	Queued bool
	// Reason is why the claim was queued.
	Reason error
}

// Redeem submits a scanned claim code. Network failures and claims the
// organizer has not synced yet are queued for a later flush instead of
// being returned.
func (r *Redeemer) Redeem(ctx context.Context, raw string) (Result, error) {
	rec, err := r.api.Claim(ctx, raw)
	if err == nil {
		return Result{Record: &rec}, nil
	}
	if !domain.IsRetryable(err) {
		return Result{}, fmt.Errorf("r.api.Claim -> %w", err)
	}

	added, qErr := r.outbox.Enqueue(ctx, outbox.Entry{
		Payload:    raw,
		Kind:       outbox.KindClaim,
		Context:    describe(raw),
		CapturedAt: r.now(),
	})
	if qErr != nil {
		return Result{}, fmt.Errorf("r.outbox.Enqueue -> %w", qErr)
	}
	r.logger.Info("claim queued",
		zap.Bool("new_entry", added),
		zap.Error(err),
	)
	return Result{Queued: true, Reason: err}, nil
}

// RedeemWin claims the badge of a won cooperative session.
func (r *Redeemer) RedeemWin(ctx context.Context, st coop.State) (Result, error) {
	raw, err := coop.SecureClaimFromWin(st, r.now())
	if err != nil {
		return Result{}, err
	}
	return r.Redeem(ctx, raw)
}

// Submit replays one queued claim.
func (r *Redeemer) Submit(ctx context.Context, e outbox.Entry) error {
	if _, err := r.api.Claim(ctx, e.Payload); err != nil {
		return fmt.Errorf("r.api.Claim -> %w", err)
	}
	return nil
}

func describe(raw string) string {
	code, err := claimcode.Parse(raw)
	if err != nil {
		return ""
	}
	switch code.Kind {
	case claimcode.KindStatic:
		return code.Static.EventID
	case claimcode.KindSecure:
		return code.Secure.EventID
	default:
		return string(claimcode.KindOnline)
	}
}
