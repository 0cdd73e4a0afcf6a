package coop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/eventpass-api/internal/claimcode"
	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/proof"
)

func encodePiece(t *testing.T, eventID, pieceID, badgeID string) string {
	t.Helper()
	raw, err := proof.NewPiece(eventID, pieceID, badgeID).Encode()
	require.NoError(t, err)
	return raw
}

func TestValidateScan(t *testing.T) {
	bound := State{EventID: "evt-1", BadgeID: "badge-2"}
	unboundBadge := State{EventID: "evt-1"}

	tests := []struct {
		name     string
		state    State
		raw      string
		wantErr  error
		wantBind bool
	}{
		{name: "first badge piece binds", state: unboundBadge, raw: encodePiece(t, "evt-1", "p1", "badge-2"), wantBind: true},
		{name: "matching badge", state: bound, raw: encodePiece(t, "evt-1", "p2", "badge-2")},
		{name: "generic piece in generic session", state: unboundBadge, raw: encodePiece(t, "evt-1", "p2", "")},
		{name: "other event", state: bound, raw: encodePiece(t, "evt-9", "p2", "badge-2"), wantErr: domain.ErrEventMismatch},
		{name: "other badge", state: bound, raw: encodePiece(t, "evt-1", "p2", "badge-1"), wantErr: domain.ErrMissionMismatch},
		{name: "generic piece in badge mission", state: bound, raw: encodePiece(t, "evt-1", "p2", ""), wantErr: domain.ErrMissionMismatch},
		{name: "forged signature", state: bound, raw: `{"e":"evt-1","p":"p2","s":"00000000","b":"badge-2"}`, wantErr: ErrForgedPiece},
		{name: "legacy id with event binding", state: unboundBadge, raw: "p1", wantErr: proof.ErrMalformedPiece},
		{name: "legacy id without binding", state: State{}, raw: "p3"},
		{name: "unknown legacy id", state: State{}, raw: "p9", wantErr: proof.ErrMalformedPiece},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan, err := ValidateScan(tt.state, tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBind, scan.BindsBadge)
		})
	}
}

func TestState_WinProof(t *testing.T) {
	st := newState(Player{ID: "host"}, proof.CanonicalPieces, "evt-1")
	st.Players = append(st.Players, Player{ID: "guest"})

	_, err := st.WinProof(time.Now())
	assert.ErrorIs(t, err, ErrNotWon)

	for i, piece := range proof.PuzzleSheet("evt-1", "") {
		require.True(t, st.claim(piece.PieceID, st.Players[i%2].ID, piece.Signature))
	}
	assert.False(t, st.claim("p1", "guest", "x"), "claimed piece stays with its finder")
	require.True(t, st.AllFound())
	st.Status = StatusWon

	now := time.UnixMilli(1700000000000)
	raw, err := SecureClaimFromWin(st, now)
	require.NoError(t, err)

	code, err := claimcode.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, claimcode.KindSecure, code.Kind)
	require.True(t, code.Secure.IsWinProof())

	wp, err := code.Secure.WinProof()
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "guest"}, wp.Team)
	assert.Equal(t, now.UnixMilli(), wp.Timestamp)
	assert.True(t, proof.VerifyComplete("evt-1", wp.Proofs, ""))
}
