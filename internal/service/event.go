package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/envelope"
	"github.com/eventpass/eventpass-api/internal/repository"
)

var (
	ErrEventNotFound    = repository.ErrEventNotFound
	ErrBadgeNotFound    = repository.ErrBadgeNotFound
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidTimeRange = errors.New("event end time must be after start time")
)

type EventRepository interface {
	Create(ctx context.Context, event domain.Event) (domain.Event, error)
	FindByID(ctx context.Context, id string) (domain.Event, error)
	FindByOrganizerID(ctx context.Context, organizerID string) ([]domain.Event, error)
	FindAll(ctx context.Context) ([]domain.Event, error)
	UpdateSessionKey(ctx context.Context, eventID, key string) error
	CreateBadge(ctx context.Context, badge domain.BadgeTemplate) (domain.BadgeTemplate, error)
	FindBadgesByEventID(ctx context.Context, eventID string) ([]domain.BadgeTemplate, error)
}

type EventService struct {
	repo  EventRepository
	users UserRepository
}

func NewEventService(repo EventRepository, users UserRepository) *EventService {
	return &EventService{
		repo:  repo,
		users: users,
	}
}

func (s *EventService) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	organizer, err := s.users.FindByID(ctx, event.OrganizerID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.users.FindByID -> %w", err)
	}
	if !organizer.IsOrganizer() {
		return domain.Event{}, ErrPermissionDenied
	}
	if !event.EndTime.After(event.StartTime) {
		return domain.Event{}, ErrInvalidTimeRange
	}

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return event, nil
}

// ListOwnEvents returns the events organized by organizerID, newest first.
func (s *EventService) ListOwnEvents(ctx context.Context, organizerID string) ([]domain.Event, error) {
	events, err := s.repo.FindByOrganizerID(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByOrganizerID -> %w", err)
	}

	return events, nil
}

// ListAllEvents is the public discovery listing, ordered by start time.
func (s *EventService) ListAllEvents(ctx context.Context) ([]domain.Event, error) {
	events, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindAll -> %w", err)
	}

	return events, nil
}

// RequireOrganizer loads the event and checks that userID organizes it.
func (s *EventService) RequireOrganizer(ctx context.Context, eventID, userID string) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}
	if event.OrganizerID != userID {
		return domain.Event{}, ErrPermissionDenied
	}

	return event, nil
}

func (s *EventService) CreateBadge(ctx context.Context, organizerID string, badge domain.BadgeTemplate) (domain.BadgeTemplate, error) {
	if _, err := s.RequireOrganizer(ctx, badge.EventID, organizerID); err != nil {
		return domain.BadgeTemplate{}, err
	}

	created, err := s.repo.CreateBadge(ctx, badge)
	if err != nil {
		return domain.BadgeTemplate{}, fmt.Errorf("s.repo.CreateBadge -> %w", err)
	}

	return created, nil
}

func (s *EventService) ListBadges(ctx context.Context, eventID string) ([]domain.BadgeTemplate, error) {
	if _, err := s.repo.FindByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	badges, err := s.repo.FindBadgesByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindBadgesByEventID -> %w", err)
	}

	return badges, nil
}

// Handshake generates a fresh session key for the event and switches it to
// offline mode. Any previous key is replaced, so envelopes sealed with it no
// longer open.
func (s *EventService) Handshake(ctx context.Context, eventID, organizerID string) (string, error) {
	event, err := s.RequireOrganizer(ctx, eventID, organizerID)
	if err != nil {
		return "", err
	}

	key, err := envelope.NewSessionKey()
	if err != nil {
		return "", fmt.Errorf("envelope.NewSessionKey -> %w", err)
	}

	if err = s.repo.UpdateSessionKey(ctx, eventID, key); err != nil {
		return "", fmt.Errorf("s.repo.UpdateSessionKey -> %w", err)
	}

	zap.L().Info("session key rotated",
		zap.String("event_id", eventID),
		zap.Bool("replaced", event.HasSessionKey()))

	return key, nil
}
