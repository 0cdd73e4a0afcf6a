package repository

import (
	"context"
	"fmt"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/repository/dao"
)

var (
	ErrEventNotFound = dao.ErrEventNotFound
	ErrBadgeNotFound = dao.ErrBadgeNotFound
)

type EventDAO interface {
	Insert(ctx context.Context, event dao.Event) (dao.Event, error)
	FindByID(ctx context.Context, id string) (dao.Event, error)
	FindByOrganizerID(ctx context.Context, organizerID string) ([]dao.Event, error)
	FindAll(ctx context.Context) ([]dao.Event, error)
	UpdateSessionKey(ctx context.Context, id, key string) error
	InsertBadge(ctx context.Context, badge dao.BadgeTemplate) (dao.BadgeTemplate, error)
	FindBadgesByEventID(ctx context.Context, eventID string) ([]dao.BadgeTemplate, error)
	FindBadgeByID(ctx context.Context, id string) (dao.BadgeTemplate, error)
	FindFirstBadge(ctx context.Context, eventID string) (dao.BadgeTemplate, error)
}

type EventRepository struct {
	dao EventDAO
}

func NewEventRepository(dao EventDAO) *EventRepository {
	return &EventRepository{
		dao: dao,
	}
}

func (r *EventRepository) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	created, err := r.dao.Insert(ctx, dao.Event{
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		Description: event.Description,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.eventDaoToDomain(created), nil
}

func (r *EventRepository) FindByID(ctx context.Context, id string) (domain.Event, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.eventDaoToDomain(found), nil
}

func (r *EventRepository) FindByOrganizerID(ctx context.Context, organizerID string) ([]domain.Event, error) {
	found, err := r.dao.FindByOrganizerID(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByOrganizerID -> %w", err)
	}

	return r.eventsDaoToDomain(found), nil
}

func (r *EventRepository) FindAll(ctx context.Context) ([]domain.Event, error) {
	found, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindAll -> %w", err)
	}

	return r.eventsDaoToDomain(found), nil
}

func (r *EventRepository) UpdateSessionKey(ctx context.Context, eventID, key string) error {
	if err := r.dao.UpdateSessionKey(ctx, eventID, key); err != nil {
		return fmt.Errorf("r.dao.UpdateSessionKey -> %w", err)
	}

	return nil
}

func (r *EventRepository) CreateBadge(ctx context.Context, badge domain.BadgeTemplate) (domain.BadgeTemplate, error) {
	created, err := r.dao.InsertBadge(ctx, dao.BadgeTemplate{
		EventID: badge.EventID,
		Name:    badge.Name,
		Type:    string(badge.Type),
		IconRef: badge.IconRef,
		Limit:   badge.Limit,
	})
	if err != nil {
		return domain.BadgeTemplate{}, fmt.Errorf("r.dao.InsertBadge -> %w", err)
	}

	return r.badgeDaoToDomain(created), nil
}

func (r *EventRepository) FindBadgesByEventID(ctx context.Context, eventID string) ([]domain.BadgeTemplate, error) {
	found, err := r.dao.FindBadgesByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindBadgesByEventID -> %w", err)
	}

	badges := make([]domain.BadgeTemplate, 0, len(found))
	for _, b := range found {
		badges = append(badges, r.badgeDaoToDomain(b))
	}

	return badges, nil
}

func (r *EventRepository) FindBadgeByID(ctx context.Context, id string) (domain.BadgeTemplate, error) {
	found, err := r.dao.FindBadgeByID(ctx, id)
	if err != nil {
		return domain.BadgeTemplate{}, fmt.Errorf("r.dao.FindBadgeByID -> %w", err)
	}

	return r.badgeDaoToDomain(found), nil
}

func (r *EventRepository) FindFirstBadge(ctx context.Context, eventID string) (domain.BadgeTemplate, error) {
	found, err := r.dao.FindFirstBadge(ctx, eventID)
	if err != nil {
		return domain.BadgeTemplate{}, fmt.Errorf("r.dao.FindFirstBadge -> %w", err)
	}

	return r.badgeDaoToDomain(found), nil
}

func (r *EventRepository) eventDaoToDomain(e dao.Event) domain.Event {
	event := domain.Event{
		ID:            e.ID,
		OrganizerID:   e.OrganizerID,
		Title:         e.Title,
		Description:   e.Description,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		OfflineActive: e.OfflineActive,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.SessionKey != nil {
		event.SessionKey = *e.SessionKey
	}

	return event
}

func (r *EventRepository) eventsDaoToDomain(found []dao.Event) []domain.Event {
	events := make([]domain.Event, 0, len(found))
	for _, e := range found {
		events = append(events, r.eventDaoToDomain(e))
	}

	return events
}

func (r *EventRepository) badgeDaoToDomain(b dao.BadgeTemplate) domain.BadgeTemplate {
	return domain.BadgeTemplate{
		ID:        b.ID,
		EventID:   b.EventID,
		Name:      b.Name,
		Type:      domain.BadgeType(b.Type),
		IconRef:   b.IconRef,
		Limit:     b.Limit,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
