package domain

import "time"

type Event struct {
	ID            string    `json:"id"`
	OrganizerID   string    `json:"organizer_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	OfflineActive bool      `json:"offline_active"`
	// SessionKey is the hex encoded AES-256 key from the last handshake.
	// It is never rendered back to clients outside the handshake response.
	SessionKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (e Event) HasSessionKey() bool {
	return e.SessionKey != ""
}

type BadgeType string

const (
	BadgeRecord        BadgeType = "Record"
	BadgeCertification BadgeType = "Certification"
	BadgeAchievement   BadgeType = "Achievement"
	BadgeAward         BadgeType = "Award"
)

// BadgeTemplate describes a badge an event can grant. Limit is advisory only.
type BadgeTemplate struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Type      BadgeType `json:"type"`
	IconRef   string    `json:"icon_ref,omitempty"`
	Limit     int       `json:"limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
