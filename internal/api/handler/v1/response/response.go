package response

import (
	"time"

	"github.com/eventpass/eventpass-api/internal/domain"
)

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type HandshakeResponse struct {
	EventID    string `json:"event_id"`
	SessionKey string `json:"session_key"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SyncResponse struct {
	Accepted int `json:"accepted"`
}

type HealthcheckResponse struct {
	Status string `json:"status"`
}
