package request

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/eventpass/eventpass-api/internal/domain"
)

var errEndBeforeStart = errors.New("end_time must be after start_time")

type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

func (req *CreateEventRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(2, 200)),
		validation.Field(&req.Description, validation.Length(0, 2000)),
		validation.Field(&req.StartTime, validation.Required),
		validation.Field(&req.EndTime, validation.Required),
	)
	if err != nil {
		return err
	}

	if !req.EndTime.After(req.StartTime) {
		return errEndBeforeStart
	}

	return nil
}

type CreateBadgeRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type" enums:"Record,Certification,Achievement,Award"`
	IconRef string `json:"icon_ref"`
	Limit   int    `json:"limit"`
}

func (req *CreateBadgeRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&req.Type, validation.Required, validation.In(
			string(domain.BadgeRecord),
			string(domain.BadgeCertification),
			string(domain.BadgeAchievement),
			string(domain.BadgeAward),
		)),
		validation.Field(&req.Limit, validation.Min(0)),
	)
}
