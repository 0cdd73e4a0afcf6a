package v1

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/eventpass/eventpass-api/internal/domain"
)

type mockUserService struct{ mock.Mock }

func (m *mockUserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockUserService) ListCredentials(ctx context.Context, userID string) ([]domain.CredentialRecord, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.CredentialRecord), args.Error(1)
}

type mockClaimRouter struct{ mock.Mock }

func (m *mockClaimRouter) Claim(ctx context.Context, raw, claimantID string) (domain.CredentialRecord, error) {
	args := m.Called(ctx, raw, claimantID)
	return args.Get(0).(domain.CredentialRecord), args.Error(1)
}

func (m *mockClaimRouter) ClaimSecure(ctx context.Context, eventID, blob, claimantID string) (domain.CredentialRecord, error) {
	args := m.Called(ctx, eventID, blob, claimantID)
	return args.Get(0).(domain.CredentialRecord), args.Error(1)
}

type mockTokenIssuer struct{ mock.Mock }

func (m *mockTokenIssuer) Issue(ctx context.Context, eventID string) (domain.EphemeralToken, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(domain.EphemeralToken), args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Sync(ctx context.Context, entries []domain.PendingValidation) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

type mockEventService struct{ mock.Mock }

func (m *mockEventService) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *mockEventService) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *mockEventService) ListOwnEvents(ctx context.Context, organizerID string) ([]domain.Event, error) {
	args := m.Called(ctx, organizerID)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *mockEventService) ListAllEvents(ctx context.Context) ([]domain.Event, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *mockEventService) RequireOrganizer(ctx context.Context, eventID, userID string) (domain.Event, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *mockEventService) CreateBadge(ctx context.Context, organizerID string, badge domain.BadgeTemplate) (domain.BadgeTemplate, error) {
	args := m.Called(ctx, organizerID, badge)
	return args.Get(0).(domain.BadgeTemplate), args.Error(1)
}

func (m *mockEventService) ListBadges(ctx context.Context, eventID string) ([]domain.BadgeTemplate, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]domain.BadgeTemplate), args.Error(1)
}

func (m *mockEventService) Handshake(ctx context.Context, eventID, organizerID string) (string, error) {
	args := m.Called(ctx, eventID, organizerID)
	return args.String(0), args.Error(1)
}
