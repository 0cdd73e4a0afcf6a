package dao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrBadgeNotFound = errors.New("badge template not found")
)

type Event struct {
	ID            string `gorm:"primaryKey;size:36"`
	OrganizerID   string `gorm:"size:36;not null;index"`
	Title         string `gorm:"not null"`
	Description   string
	StartTime     time.Time       `gorm:"not null"`
	EndTime       time.Time       `gorm:"not null"`
	SessionKey    *string         `gorm:"size:64"`
	OfflineActive bool            `gorm:"default:false"`
	Badges        []BadgeTemplate `gorm:"foreignKey:EventID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

type BadgeTemplate struct {
	ID        string `gorm:"primaryKey;size:36"`
	EventID   string `gorm:"size:36;not null;index"`
	Name      string `gorm:"not null"`
	Type      string `gorm:"not null"` // Record, Certification, Achievement or Award
	IconRef   string
	Limit     int `gorm:"default:0"` // advisory
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *BadgeTemplate) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

func (d *EventDAO) Insert(ctx context.Context, event Event) (Event, error) {
	if err := d.db.WithContext(ctx).Create(&event).Error; err != nil {
		return Event{}, err
	}
	return event, nil
}

func (d *EventDAO) FindByID(ctx context.Context, id string) (Event, error) {
	var event Event
	result := d.db.WithContext(ctx).First(&event, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, result.Error
	}
	return event, nil
}

func (d *EventDAO) FindByOrganizerID(ctx context.Context, organizerID string) ([]Event, error) {
	var events []Event
	result := d.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("start_time DESC").
		Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}
	return events, nil
}

func (d *EventDAO) FindAll(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := d.db.WithContext(ctx).Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// UpdateSessionKey overwrites the session key and switches the event into
// offline mode.
func (d *EventDAO) UpdateSessionKey(ctx context.Context, id, key string) error {
	result := d.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"session_key":    key,
			"offline_active": true,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (d *EventDAO) InsertBadge(ctx context.Context, badge BadgeTemplate) (BadgeTemplate, error) {
	if err := d.db.WithContext(ctx).Create(&badge).Error; err != nil {
		return BadgeTemplate{}, err
	}
	return badge, nil
}

func (d *EventDAO) FindBadgesByEventID(ctx context.Context, eventID string) ([]BadgeTemplate, error) {
	var badges []BadgeTemplate
	result := d.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		Find(&badges)
	if result.Error != nil {
		return nil, result.Error
	}
	return badges, nil
}

func (d *EventDAO) FindBadgeByID(ctx context.Context, id string) (BadgeTemplate, error) {
	var badge BadgeTemplate
	result := d.db.WithContext(ctx).First(&badge, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return BadgeTemplate{}, ErrBadgeNotFound
		}
		return BadgeTemplate{}, result.Error
	}
	return badge, nil
}

// FindFirstBadge returns the earliest badge template defined for the event.
func (d *EventDAO) FindFirstBadge(ctx context.Context, eventID string) (BadgeTemplate, error) {
	var badge BadgeTemplate
	result := d.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		First(&badge)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return BadgeTemplate{}, ErrBadgeNotFound
		}
		return BadgeTemplate{}, result.Error
	}
	return badge, nil
}
