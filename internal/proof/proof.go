// Package proof signs and verifies cooperative puzzle pieces.
//
// The per-event secret is derived from the event id and a fixed shared
// string, so every device can sign and verify without a network round trip.
// Anyone who knows the scheme and an event id can forge signatures; the
// scheme is kept as is for compatibility with already printed piece codes.
package proof

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// SharedString is mixed into every derived secret. Changing it invalidates
// every printed piece code.
const SharedString = "eventpass-coop-v1"

// SignatureLength is the number of hex characters kept from the MAC.
const SignatureLength = 8

// CanonicalPieces is the fixed set of piece ids a puzzle consists of.
var CanonicalPieces = []string{"p1", "p2", "p3", "p4"}

var ErrMalformedPiece = errors.New("malformed piece code")

func DeriveSecret(eventID string) []byte {
	sum := sha256.Sum256([]byte(eventID + ":" + SharedString))
	return sum[:]
}

// Sign returns the short signature of a piece. badgeID may be empty.
func Sign(eventID, pieceID, badgeID string) string {
	mac := hmac.New(sha256.New, DeriveSecret(eventID))
	mac.Write([]byte(badgeID + pieceID))
	return hex.EncodeToString(mac.Sum(nil))[:SignatureLength]
}

// VerifyComplete reports whether proofs contains the signature of every
// canonical piece for (eventID, badgeID). Order and extra entries are
// irrelevant.
func VerifyComplete(eventID string, proofs []string, badgeID string) bool {
	have := make(map[string]struct{}, len(proofs))
	for _, p := range proofs {
		have[p] = struct{}{}
	}
	for _, pieceID := range CanonicalPieces {
		if _, ok := have[Sign(eventID, pieceID, badgeID)]; !ok {
			return false
		}
	}
	return true
}

// Piece is the content of a printed piece code.
type Piece struct {
	EventID   string `json:"e"`
	PieceID   string `json:"p"`
	Signature string `json:"s"`
	BadgeID   string `json:"b,omitempty"`
}

// NewPiece builds a signed piece code.
func NewPiece(eventID, pieceID, badgeID string) Piece {
	return Piece{
		EventID:   eventID,
		PieceID:   pieceID,
		Signature: Sign(eventID, pieceID, badgeID),
		BadgeID:   badgeID,
	}
}

func (p Piece) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Valid reports whether the signature matches the piece content.
func (p Piece) Valid() bool {
	return hmac.Equal([]byte(p.Signature), []byte(Sign(p.EventID, p.PieceID, p.BadgeID)))
}

// ParsePiece decodes a scanned piece code. Both e and p are required.
func ParsePiece(raw string) (Piece, error) {
	var p Piece
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Piece{}, fmt.Errorf("%w: %v", ErrMalformedPiece, err)
	}
	if p.EventID == "" || p.PieceID == "" {
		return Piece{}, ErrMalformedPiece
	}
	return p, nil
}

// PuzzleSheet returns the signed codes for every canonical piece.
func PuzzleSheet(eventID, badgeID string) []Piece {
	pieces := make([]Piece, 0, len(CanonicalPieces))
	for _, id := range CanonicalPieces {
		pieces = append(pieces, NewPiece(eventID, id, badgeID))
	}
	return pieces
}
