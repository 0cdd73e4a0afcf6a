package dao

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(run(m))
}

// run starts a disposable postgres container. Without docker the tests in
// this package are skipped.
func run(m *testing.M) int {
	if testing.Short() {
		return m.Run()
	}

	pool, err := dockertest.NewPool("")
	if err != nil || pool.Client.Ping() != nil {
		return m.Run()
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=eventpass",
			"POSTGRES_PASSWORD=eventpass",
			"POSTGRES_DB=eventpass",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = pool.Purge(resource) }()
	_ = resource.Expire(120)

	dsn := fmt.Sprintf("host=localhost port=%s user=eventpass password=eventpass dbname=eventpass sslmode=disable",
		resource.GetPort("5432/tcp"))

	pool.MaxWait = time.Minute
	if err = pool.Retry(func() error {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err = sqlDB.Ping(); err != nil {
			return err
		}
		testDB = db
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to postgres: %v\n", err)
		return 1
	}

	if err = InitTables(testDB); err != nil {
		fmt.Fprintf(os.Stderr, "could not migrate: %v\n", err)
		return 1
	}

	return m.Run()
}

func requireDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}
	return testDB
}

func seedEvent(t *testing.T, db *gorm.DB) (Event, BadgeTemplate, BadgeTemplate) {
	t.Helper()
	ctx := context.Background()
	events := NewEventDAO(db)

	now := time.Now()
	event, err := events.Insert(ctx, Event{OrganizerID: "org", Title: "Meetup", StartTime: now, EndTime: now.Add(time.Hour)})
	require.NoError(t, err)

	first, err := events.InsertBadge(ctx, BadgeTemplate{EventID: event.ID, Name: "Attendee", Type: "Record"})
	require.NoError(t, err)
	second, err := events.InsertBadge(ctx, BadgeTemplate{EventID: event.ID, Name: "Speaker", Type: "Award"})
	require.NoError(t, err)

	return event, first, second
}

func TestUserDAO(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	users := NewUserDAO(db)

	created, err := users.Insert(ctx, User{Email: "dao@example.com", Password: "x", Name: "Dao", Role: "participant"})
	require.NoError(t, err)
	assert.Len(t, created.ID, 36)

	_, err = users.Insert(ctx, User{Email: "dao@example.com", Password: "x", Name: "Dup", Role: "participant"})
	assert.ErrorIs(t, err, ErrUserEmailExists)

	found, err := users.FindByEmail(ctx, "dao@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = users.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEventDAO(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	events := NewEventDAO(db)
	event, first, _ := seedEvent(t, db)

	require.NoError(t, events.UpdateSessionKey(ctx, event.ID, "abcd"))
	found, err := events.FindByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, found.SessionKey)
	assert.Equal(t, "abcd", *found.SessionKey)
	assert.True(t, found.OfflineActive)

	badge, err := events.FindFirstBadge(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, badge.ID)

	assert.ErrorIs(t, events.UpdateSessionKey(ctx, "missing", "k"), ErrEventNotFound)
	_, err = events.FindFirstBadge(ctx, "missing")
	assert.ErrorIs(t, err, ErrBadgeNotFound)
}

func TestCredentialDAO_InsertUnique(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	credentials := NewCredentialDAO(db)
	event, first, _ := seedEvent(t, db)

	record := CredentialRecord{
		UserID: "user-1", EventID: event.ID, BadgeTemplateID: first.ID,
		IssuedAt: time.Now(), Payload: `{"path":"static"}`, Hash: "h",
	}

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		exists int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := credentials.InsertUnique(ctx, record)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrCredentialExists):
				exists++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, exists)

	has, err := credentials.Exists(ctx, "user-1", event.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPendingValidationDAO(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	ledger := NewPendingValidationDAO(db)
	now := time.Now()

	n, err := ledger.InsertBatch(ctx, []PendingValidation{
		{EventID: "e-dao", UserID: "u1", VerificationHash: "h1", CreatedAt: now},
		{EventID: "e-dao", UserID: "u1", VerificationHash: "h1", CreatedAt: now},
		{EventID: "e-dao", UserID: "u2", VerificationHash: "old", CreatedAt: now.Add(-31 * 24 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed []uint
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := ledger.MatchAndConsume(ctx, "e-dao", "u1", "h1")
			if err != nil {
				return
			}
			mu.Lock()
			consumed = append(consumed, entry.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, consumed, 2)
	assert.NotEqual(t, consumed[0], consumed[1])

	_, err = ledger.MatchAndConsume(ctx, "e-dao", "u1", "h1")
	assert.ErrorIs(t, err, ErrPendingValidationNotFound)

	require.NoError(t, ledger.Restore(ctx, PendingValidation{
		ID: consumed[0], EventID: "e-dao", UserID: "u1", VerificationHash: "h1", CreatedAt: now,
	}))
	restored, err := ledger.MatchAndConsume(ctx, "e-dao", "u1", "h1")
	require.NoError(t, err)
	assert.Equal(t, consumed[0], restored.ID)

	deleted, err := ledger.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
