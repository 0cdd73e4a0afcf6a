package domain

import "time"

const EphemeralTokenTTL = 5 * time.Minute

// EphemeralToken is a single-use online claim token. It only ever lives in
// process memory.
type EphemeralToken struct {
	Token     string    `json:"token"`
	EventID   string    `json:"event_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t EphemeralToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
