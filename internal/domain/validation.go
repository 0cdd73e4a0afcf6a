package domain

import "time"

const PendingValidationRetention = 30 * 24 * time.Hour

// PendingValidation is a commitment hash uploaded by an organizer device,
// waiting for the participant claim that produces the same hash.
type PendingValidation struct {
	ID        uint      `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}
