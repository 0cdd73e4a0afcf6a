package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/eventpass-api/internal/domain"
)

func newEventFixture() (*EventService, *fakeEvents, domain.User, domain.User) {
	organizer := domain.User{ID: "org-1", Role: domain.RoleOrganizer}
	participant := domain.User{ID: "user-1", Role: domain.RoleParticipant}
	events := newFakeEvents()

	return NewEventService(events, newFakeUsers(organizer, participant)), events, organizer, participant
}

func TestEventService_CreateEvent(t *testing.T) {
	ctx := context.Background()
	svc, _, organizer, participant := newEventFixture()
	start := time.Now()

	created, err := svc.CreateEvent(ctx, domain.Event{
		OrganizerID: organizer.ID, Title: "Meetup", StartTime: start, EndTime: start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = svc.CreateEvent(ctx, domain.Event{
		OrganizerID: participant.ID, Title: "Nope", StartTime: start, EndTime: start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.CreateEvent(ctx, domain.Event{
		OrganizerID: organizer.ID, Title: "Backwards", StartTime: start, EndTime: start.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestEventService_Handshake(t *testing.T) {
	ctx := context.Background()
	svc, events, organizer, participant := newEventFixture()
	event := events.addEvent(domain.Event{OrganizerID: organizer.ID})

	first, err := svc.Handshake(ctx, event.ID, organizer.ID)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	stored, err := events.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, first, stored.SessionKey)
	assert.True(t, stored.OfflineActive)

	second, err := svc.Handshake(ctx, event.ID, organizer.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = svc.Handshake(ctx, event.ID, participant.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Handshake(ctx, "missing", organizer.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventService_Badges(t *testing.T) {
	ctx := context.Background()
	svc, events, organizer, participant := newEventFixture()
	event := events.addEvent(domain.Event{OrganizerID: organizer.ID})

	badge, err := svc.CreateBadge(ctx, organizer.ID, domain.BadgeTemplate{
		EventID: event.ID, Name: "Attendee", Type: domain.BadgeRecord,
	})
	require.NoError(t, err)

	_, err = svc.CreateBadge(ctx, participant.ID, domain.BadgeTemplate{EventID: event.ID, Name: "x"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	badges, err := svc.ListBadges(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, badge.ID, badges[0].ID)

	_, err = svc.ListBadges(ctx, "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}
