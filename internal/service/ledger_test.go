package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/eventpass-api/internal/domain"
)

func TestLedgerService_SyncAndMatch(t *testing.T) {
	ctx := context.Background()
	repo := &fakeLedger{}
	svc := NewLedgerService(repo, 0)
	now := time.UnixMilli(1700000000000)
	svc.now = func() time.Time { return now }

	n, err := svc.Sync(ctx, []domain.PendingValidation{
		{EventID: "e1", UserID: "u1", Hash: "h1", CreatedAt: now.Add(-365 * 24 * time.Hour)},
		{EventID: "e1", UserID: "u1", Hash: "h1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entry, err := svc.MatchAndConsume(ctx, "e1", "u1", "h1")
	require.NoError(t, err)
	assert.Equal(t, "h1", entry.Hash)
	assert.True(t, now.Equal(entry.CreatedAt), "device supplied time is ignored")

	_, err = svc.MatchAndConsume(ctx, "e1", "u1", "h1")
	require.NoError(t, err)

	_, err = svc.MatchAndConsume(ctx, "e1", "u1", "h1")
	assert.ErrorIs(t, err, domain.ErrOrganizerNotSynced)
}

func TestLedgerService_Purge(t *testing.T) {
	ctx := context.Background()
	repo := &fakeLedger{}
	svc := NewLedgerService(repo, 0)
	now := time.Now()

	svc.now = func() time.Time { return now.Add(-31 * 24 * time.Hour) }
	_, err := svc.Sync(ctx, []domain.PendingValidation{{EventID: "e1", UserID: "u1", Hash: "old"}})
	require.NoError(t, err)
	svc.now = func() time.Time { return now.Add(-time.Hour) }
	_, err = svc.Sync(ctx, []domain.PendingValidation{{EventID: "e1", UserID: "u1", Hash: "new"}})
	require.NoError(t, err)

	n, err := svc.Purge(ctx, now.Add(-domain.PendingValidationRetention))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.MatchAndConsume(ctx, "e1", "u1", "old")
	assert.ErrorIs(t, err, domain.ErrOrganizerNotSynced)
	_, err = svc.MatchAndConsume(ctx, "e1", "u1", "new")
	assert.NoError(t, err)
}

func TestLedgerService_RunRetentionSweep(t *testing.T) {
	repo := &fakeLedger{}
	svc := NewLedgerService(repo, time.Hour)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	_, err := svc.Sync(context.Background(), []domain.PendingValidation{
		{EventID: "e1", UserID: "u1", Hash: "old"},
	})
	require.NoError(t, err)
	svc.now = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunRetentionSweep(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return repo.len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
