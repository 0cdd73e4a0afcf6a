package coop

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventpass/eventpass-api/internal/claimcode"
)

type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
)

var (
	ErrGameOver       = errors.New("game already won")
	ErrNotRunning     = errors.New("session not running")
	ErrNotWon         = errors.New("game not won yet")
	ErrNotInLobby     = errors.New("game already started")
	ErrNoEventBinding = errors.New("session has no event binding")
	ErrUnknownPiece   = errors.New("piece is not part of this puzzle")
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Piece is unclaimed while FoundBy is empty.
type Piece struct {
	ID        string `json:"id"`
	FoundBy   string `json:"foundBy"`
	Signature string `json:"signature,omitempty"`
}

// State is the plain-data view of a session shared with every peer.
type State struct {
	Players []Player `json:"players"`
	Pieces  []Piece  `json:"pieces"`
	Status  Status   `json:"status"`
	HostID  string   `json:"hostId"`
	EventID string   `json:"activeEventId,omitempty"`
	BadgeID string   `json:"activeBadgeId,omitempty"`
}

func newState(host Player, pieceIDs []string, eventID string) State {
	pieces := make([]Piece, 0, len(pieceIDs))
	for _, id := range pieceIDs {
		pieces = append(pieces, Piece{ID: id})
	}
	return State{
		Players: []Player{host},
		Pieces:  pieces,
		Status:  StatusLobby,
		HostID:  host.ID,
		EventID: eventID,
	}
}

func (s State) clone() State {
	c := s
	c.Players = append([]Player(nil), s.Players...)
	c.Pieces = append([]Piece(nil), s.Pieces...)
	return c
}

func (s State) HasPlayer(id string) bool {
	for _, p := range s.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// AllFound reports whether every piece has been claimed.
func (s State) AllFound() bool {
	if len(s.Pieces) == 0 {
		return false
	}
	for _, p := range s.Pieces {
		if p.FoundBy == "" {
			return false
		}
	}
	return true
}

// claim marks pieceID as found. It reports false when the piece is unknown
// or already claimed.
func (s State) hasPiece(pieceID string) bool {
	for _, p := range s.Pieces {
		if p.ID == pieceID {
			return true
		}
	}
	return false
}

func (s *State) claim(pieceID, playerID, signature string) bool {
	for i := range s.Pieces {
		if s.Pieces[i].ID != pieceID {
			continue
		}
		if s.Pieces[i].FoundBy != "" {
			return false
		}
		s.Pieces[i].FoundBy = playerID
		s.Pieces[i].Signature = signature
		return true
	}
	return false
}

// WinProof collects every player and every piece signature of a won game.
func (s State) WinProof(now time.Time) (claimcode.WinProof, error) {
	if s.Status != StatusWon {
		return claimcode.WinProof{}, ErrNotWon
	}

	team := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		team = append(team, p.ID)
	}
	proofs := make([]string, 0, len(s.Pieces))
	for _, p := range s.Pieces {
		if p.Signature != "" {
			proofs = append(proofs, p.Signature)
		}
	}

	return claimcode.WinProof{
		Team:      team,
		Proofs:    proofs,
		BadgeID:   s.BadgeID,
		Timestamp: now.UnixMilli(),
	}, nil
}

// SecureClaimFromWin wraps the win proof of s into a scannable secure claim.
func SecureClaimFromWin(s State, now time.Time) (string, error) {
	if s.EventID == "" {
		return "", ErrNoEventBinding
	}
	proof, err := s.WinProof(now)
	if err != nil {
		return "", err
	}
	blob, err := json.Marshal(proof)
	if err != nil {
		return "", fmt.Errorf("encode win proof: %w", err)
	}
	return claimcode.NewSecure(s.EventID, string(blob)).Encode(), nil
}
