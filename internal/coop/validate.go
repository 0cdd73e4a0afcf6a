package coop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/proof"
)

var ErrForgedPiece = errors.New("piece signature does not match its content")

// Scan is a piece accepted for submission.
type Scan struct {
	PieceID   string
	Signature string
	EventID   string
	BadgeID   string
	// BindsBadge is set when the piece is the first one carrying a badge id.
	BindsBadge bool
}

func (sc Scan) pieceFound(playerID string) PieceFound {
	return PieceFound{
		PieceID:   sc.PieceID,
		PlayerID:  playerID,
		Signature: sc.Signature,
		EventID:   sc.EventID,
		BadgeID:   sc.BadgeID,
	}
}

// ValidateScan checks a scanned piece code against the bindings of s.
// Bare canonical piece ids are accepted only while s has no event binding.
func ValidateScan(s State, raw string) (Scan, error) {
	raw = strings.TrimSpace(raw)

	piece, err := proof.ParsePiece(raw)
	if err != nil {
		if s.EventID == "" && isCanonical(raw) {
			return Scan{PieceID: raw}, nil
		}
		return Scan{}, err
	}
	if !piece.Valid() {
		return Scan{}, ErrForgedPiece
	}

	bind, err := s.checkBinding(piece.EventID, piece.BadgeID)
	if err != nil {
		return Scan{}, err
	}

	return Scan{
		PieceID:    piece.PieceID,
		Signature:  piece.Signature,
		EventID:    piece.EventID,
		BadgeID:    piece.BadgeID,
		BindsBadge: bind,
	}, nil
}

// checkBinding reports whether badgeID would become the session badge.
func (s State) checkBinding(eventID, badgeID string) (bool, error) {
	if s.EventID != "" && eventID != s.EventID {
		return false, fmt.Errorf("%w: piece for %q, playing %q", domain.ErrEventMismatch, eventID, s.EventID)
	}

	switch {
	case badgeID != "" && s.BadgeID == "":
		return true, nil
	case badgeID != "" && badgeID != s.BadgeID:
		return false, fmt.Errorf("%w: piece for badge %q, hunting %q", domain.ErrMissionMismatch, badgeID, s.BadgeID)
	case badgeID == "" && s.BadgeID != "":
		return false, fmt.Errorf("%w: generic piece in badge mission %q", domain.ErrMissionMismatch, s.BadgeID)
	}
	return false, nil
}

func isCanonical(pieceID string) bool {
	for _, id := range proof.CanonicalPieces {
		if id == pieceID {
			return true
		}
	}
	return false
}
