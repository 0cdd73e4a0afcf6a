package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type ClaimPath string

const (
	ClaimOnline ClaimPath = "online"
	ClaimStatic ClaimPath = "static"
	ClaimSecure ClaimPath = "secure"
	ClaimCoop   ClaimPath = "coop"
)

// CredentialRecord is a badge granted to a user for an event. At most one
// exists per (UserID, EventID, BadgeTemplateID).
type CredentialRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	EventID         string    `json:"event_id"`
	BadgeTemplateID string    `json:"badge_template_id"`
	IssuedAt        time.Time `json:"issued_at"`
	Payload         string    `json:"payload"`
	Hash            string    `json:"hash"`
}

// CredentialKey is the uniqueness tuple of a CredentialRecord.
type CredentialKey struct {
	UserID          string
	EventID         string
	BadgeTemplateID string
}

func (r CredentialRecord) Key() CredentialKey {
	return CredentialKey{UserID: r.UserID, EventID: r.EventID, BadgeTemplateID: r.BadgeTemplateID}
}

// IntegrityHash binds the record fields and the issuance path together.
func IntegrityHash(key CredentialKey, issuedAt time.Time, path ClaimPath) string {
	sum := sha256.Sum256([]byte(key.UserID + key.EventID + key.BadgeTemplateID +
		issuedAt.UTC().Format(time.RFC3339Nano) + string(path)))
	return hex.EncodeToString(sum[:])
}
