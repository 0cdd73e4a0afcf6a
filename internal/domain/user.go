package domain

import "time"

const (
	RoleOrganizer   = "organizer"
	RoleParticipant = "participant"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) IsOrganizer() bool {
	return u.Role == RoleOrganizer
}
