package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
)

// TokenStore holds ephemeral tokens. Take must remove and return a token in
// one atomic step.
type TokenStore interface {
	Put(t domain.EphemeralToken)
	Take(token string) (domain.EphemeralToken, bool)
	Restore(t domain.EphemeralToken) bool
	DeleteExpired(now time.Time) int
}

type EventFinder interface {
	FindByID(ctx context.Context, id string) (domain.Event, error)
}

type TokenBroker struct {
	events EventFinder
	store  TokenStore
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenBroker(events EventFinder, store TokenStore, ttl time.Duration) *TokenBroker {
	if ttl <= 0 {
		ttl = domain.EphemeralTokenTTL
	}

	return &TokenBroker{
		events: events,
		store:  store,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a single-use token for an existing event.
func (b *TokenBroker) Issue(ctx context.Context, eventID string) (domain.EphemeralToken, error) {
	if _, err := b.events.FindByID(ctx, eventID); err != nil {
		return domain.EphemeralToken{}, fmt.Errorf("b.events.FindByID -> %w", err)
	}

	t := domain.EphemeralToken{
		Token:     uuid.NewString(),
		EventID:   eventID,
		ExpiresAt: b.now().Add(b.ttl),
	}
	b.store.Put(t)

	return t, nil
}

// Redeem consumes the token. A consumed token is gone even when it turns out
// to be expired.
func (b *TokenBroker) Redeem(_ context.Context, token string) (domain.EphemeralToken, error) {
	t, ok := b.store.Take(token)
	if !ok {
		return domain.EphemeralToken{}, domain.ErrInvalidToken
	}
	if t.Expired(b.now()) {
		return domain.EphemeralToken{}, domain.ErrExpiredToken
	}

	return t, nil
}

// Restore returns a redeemed token to the store when the mint that followed
// did not happen. Expired tokens are dropped.
func (b *TokenBroker) Restore(t domain.EphemeralToken) {
	if t.Expired(b.now()) {
		return
	}
	b.store.Restore(t)
}

// RunJanitor deletes expired tokens every interval until ctx is done.
func (b *TokenBroker) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.store.DeleteExpired(b.now()); n > 0 {
				zap.L().Debug("expired tokens removed", zap.Int("count", n))
			}
		}
	}
}
