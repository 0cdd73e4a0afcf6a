// Package claimcode defines the scannable claim payloads exchanged between
// devices and the server.
package claimcode

import (
	"encoding/json"
	"errors"
	"strings"
)

type Kind string

const (
	KindOnline Kind = "online"
	KindStatic Kind = "static"
	KindSecure Kind = "secure"
)

var ErrMalformed = errors.New("malformed claim code")

// Static is a pre-shared, unsigned and non-expiring claim.
type Static struct {
	Type    string `json:"type"`
	EventID string `json:"eid"`
	BadgeID string `json:"bid,omitempty"`
}

// Secure carries either a sealed envelope or a win proof in Blob.
type Secure struct {
	Type    string `json:"type"`
	EventID string `json:"eid"`
	Blob    string `json:"blob"`
}

// WinProof is produced by a finished cooperative puzzle.
type WinProof struct {
	Team      []string `json:"team"`
	Proofs    []string `json:"proofs"`
	BadgeID   string   `json:"bid,omitempty"`
	Timestamp int64    `json:"ts"`
}

// Code is a classified claim.
type Code struct {
	Kind   Kind
	Raw    string
	Static Static
	Secure Secure
}

func NewStatic(eventID, badgeID string) Static {
	return Static{Type: string(KindStatic), EventID: eventID, BadgeID: badgeID}
}

func NewSecure(eventID, blob string) Secure {
	return Secure{Type: string(KindSecure), EventID: eventID, Blob: blob}
}

func (s Static) Encode() string { return encode(s) }
func (s Secure) Encode() string { return encode(s) }

func encode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// IsWinProof reports whether the secure blob carries a win proof rather
// than a sealed envelope.
func (s Secure) IsWinProof() bool {
	return strings.HasPrefix(strings.TrimSpace(s.Blob), "{")
}

func (s Secure) WinProof() (WinProof, error) {
	var w WinProof
	if err := json.Unmarshal([]byte(s.Blob), &w); err != nil {
		return WinProof{}, ErrMalformed
	}
	return w, nil
}

func (w WinProof) HasMember(userID string) bool {
	for _, id := range w.Team {
		if id == userID {
			return true
		}
	}
	return false
}

// Parse classifies raw. JSON objects typed "secure" or "static" are decoded,
// anything else is treated as an online token.
func Parse(raw string) (Code, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Code{}, ErrMalformed
	}

	if strings.HasPrefix(raw, "{") {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(raw), &head); err == nil {
			switch Kind(head.Type) {
			case KindSecure:
				var s Secure
				if err := json.Unmarshal([]byte(raw), &s); err != nil || s.EventID == "" || s.Blob == "" {
					return Code{}, ErrMalformed
				}
				return Code{Kind: KindSecure, Raw: raw, Secure: s}, nil
			case KindStatic:
				var s Static
				if err := json.Unmarshal([]byte(raw), &s); err != nil || s.EventID == "" {
					return Code{}, ErrMalformed
				}
				return Code{Kind: KindStatic, Raw: raw, Static: s}, nil
			}
		}
	}

	return Code{Kind: KindOnline, Raw: raw}, nil
}
