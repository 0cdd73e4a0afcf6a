package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/repository"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]domain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == user.Email {
			return domain.User{}, repository.ErrUserEmailExists
		}
	}
	user.ID = uuid.NewString()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrUserNotFound
}

type fakeEvents struct {
	mu     sync.Mutex
	events map[string]domain.Event
	badges []domain.BadgeTemplate
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: make(map[string]domain.Event)}
}

func (f *fakeEvents) addEvent(e domain.Event) domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	f.events[e.ID] = e
	return e
}

func (f *fakeEvents) addBadge(b domain.BadgeTemplate) domain.BadgeTemplate {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	f.badges = append(f.badges, b)
	return b
}

func (f *fakeEvents) Create(_ context.Context, e domain.Event) (domain.Event, error) {
	return f.addEvent(e), nil
}

func (f *fakeEvents) FindByID(_ context.Context, id string) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.events[id]
	if !ok {
		return domain.Event{}, repository.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeEvents) FindByOrganizerID(_ context.Context, organizerID string) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Event
	for _, e := range f.events {
		if e.OrganizerID == organizerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) FindAll(_ context.Context) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Event, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEvents) UpdateSessionKey(_ context.Context, eventID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.events[eventID]
	if !ok {
		return repository.ErrEventNotFound
	}
	e.SessionKey = key
	e.OfflineActive = true
	f.events[eventID] = e
	return nil
}

func (f *fakeEvents) CreateBadge(_ context.Context, b domain.BadgeTemplate) (domain.BadgeTemplate, error) {
	return f.addBadge(b), nil
}

func (f *fakeEvents) FindBadgesByEventID(_ context.Context, eventID string) ([]domain.BadgeTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.BadgeTemplate
	for _, b := range f.badges {
		if b.EventID == eventID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeEvents) FindBadgeByID(_ context.Context, id string) (domain.BadgeTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.badges {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.BadgeTemplate{}, repository.ErrBadgeNotFound
}

func (f *fakeEvents) FindFirstBadge(_ context.Context, eventID string) (domain.BadgeTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.badges {
		if b.EventID == eventID {
			return b, nil
		}
	}
	return domain.BadgeTemplate{}, repository.ErrBadgeNotFound
}

// fakeCredentials enforces the uniqueness tuple like the database index.
// failNext makes the next Create calls fail with that many errors.
type fakeCredentials struct {
	mu       sync.Mutex
	records  map[domain.CredentialKey]domain.CredentialRecord
	failNext int
	failErr  error
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{records: make(map[domain.CredentialKey]domain.CredentialRecord)}
}

func (f *fakeCredentials) Exists(_ context.Context, key domain.CredentialKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.records[key]
	return ok, nil
}

func (f *fakeCredentials) Create(_ context.Context, r domain.CredentialRecord) (domain.CredentialRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext > 0 {
		f.failNext--
		return domain.CredentialRecord{}, f.failErr
	}
	if _, ok := f.records[r.Key()]; ok {
		return domain.CredentialRecord{}, domain.ErrAlreadyClaimed
	}
	r.ID = uuid.NewString()
	f.records[r.Key()] = r
	return r, nil
}

func (f *fakeCredentials) FindByUserID(_ context.Context, userID string) ([]domain.CredentialRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.CredentialRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCredentials) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.records)
}

type fakeLedger struct {
	mu      sync.Mutex
	nextID  uint
	entries []domain.PendingValidation
}

func (f *fakeLedger) InsertBatch(_ context.Context, entries []domain.PendingValidation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range entries {
		f.nextID++
		e.ID = f.nextID
		f.entries = append(f.entries, e)
	}
	return len(entries), nil
}

func (f *fakeLedger) MatchAndConsume(_ context.Context, eventID, userID, hash string) (domain.PendingValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, e := range f.entries {
		if e.EventID == eventID && e.UserID == userID && e.Hash == hash {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return e, nil
		}
	}
	return domain.PendingValidation{}, repository.ErrPendingValidationNotFound
}

func (f *fakeLedger) Restore(_ context.Context, entry domain.PendingValidation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedger) DeleteOlderThan(_ context.Context, threshold time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.entries[:0]
	var n int64
	for _, e := range f.entries {
		if e.CreatedAt.Before(threshold) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return n, nil
}

func (f *fakeLedger) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.entries)
}
