// Package outbox persists claims and validations a device could not deliver
// and replays them later.
package outbox

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Kind string

const (
	// KindClaim holds a raw scanned claim code.
	KindClaim Kind = "claim"
	// KindValidation holds a JSON encoded pending validation.
	KindValidation Kind = "validation"
)

// Entry is one undelivered item. Payload is its identity.
type Entry struct {
	Payload    string
	Kind       Kind
	Context    string
	CapturedAt time.Time
}

type Outbox struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens the sqlite database at dsn and applies the migrations.
func Open(ctx context.Context, dsn string) (*Outbox, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", dsn, err)
	}
	// A single connection keeps :memory: databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// gooseLogger sends goose output to the global zap logger.
type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetLogger(gooseLogger{l: zap.L().Named("goose").Sugar()})
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate outbox: %w", err)
	}
	return nil
}

func New(db *sql.DB) *Outbox {
	return &Outbox{db: db, logger: zap.L(), now: time.Now}
}

func (o *Outbox) WithLogger(l *zap.Logger) *Outbox {
	o.logger = l
	return o
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Enqueue stores e unless an entry with the same payload exists. It reports
// whether a new entry was stored.
func (o *Outbox) Enqueue(ctx context.Context, e Entry) (bool, error) {
	if e.CapturedAt.IsZero() {
		e.CapturedAt = o.now()
	}
	res, err := o.db.ExecContext(ctx, `
		INSERT INTO outbox (payload, kind, context, captured_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(payload) DO NOTHING
	`, e.Payload, string(e.Kind), e.Context, e.CapturedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s entry: %w", e.Kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s entry: %w", e.Kind, err)
	}
	return n == 1, nil
}

// List returns every entry, oldest first.
func (o *Outbox) List(ctx context.Context) ([]Entry, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT payload, kind, context, captured_at FROM outbox ORDER BY captured_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			kind       string
			capturedAt int64
		)
		if err := rows.Scan(&e.Payload, &kind, &e.Context, &capturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		e.Kind = Kind(kind)
		e.CapturedAt = time.UnixMilli(capturedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return entries, nil
}

func (o *Outbox) Remove(ctx context.Context, payload string) error {
	if _, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE payload = ?`, payload); err != nil {
		return fmt.Errorf("failed to remove outbox entry: %w", err)
	}
	return nil
}

func (o *Outbox) Len(ctx context.Context) (int, error) {
	var n int
	if err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}

// Submitter delivers one entry. A domain.IsSatisfied error counts as
// delivered and a domain.IsTerminal error drops the entry. Any other error
// keeps it for the next flush.
type Submitter interface {
	Submit(ctx context.Context, e Entry) error
}

type SubmitterFunc func(ctx context.Context, e Entry) error

func (f SubmitterFunc) Submit(ctx context.Context, e Entry) error { return f(ctx, e) }

var ErrUnknownKind = errors.New("no submitter for outbox entry kind")

// Mux routes each entry to the submitter registered for its kind.
type Mux map[Kind]Submitter

func (m Mux) Submit(ctx context.Context, e Entry) error {
	s, ok := m[e.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, e.Kind)
	}
	return s.Submit(ctx, e)
}

type Failure struct {
	Entry Entry
	Err   error
}

type FlushReport struct {
	Delivered int
	Satisfied int
	Kept      int
	Failed    []Failure
}

// Flush tries every entry once, in order. Delivered and terminal entries are
// removed; terminal ones are reported. A cancelled ctx stops the flush and leaves the rest queued.
func (o *Outbox) Flush(ctx context.Context, s Submitter) (FlushReport, error) {
	var report FlushReport

	entries, err := o.List(ctx)
	if err != nil {
		return report, err
	}

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			report.Kept += len(entries) - i
			return report, err
		}

		err := s.Submit(ctx, e)
		switch {
		case err == nil:
			report.Delivered++
		case domain.IsSatisfied(err):
			report.Satisfied++
		case domain.IsTerminal(err):
			report.Failed = append(report.Failed, Failure{Entry: e, Err: err})
			o.logger.Warn("outbox entry dropped", zap.String("kind", string(e.Kind)), zap.Error(err))
		default:
			report.Kept++
			o.logger.Debug("outbox entry kept", zap.String("kind", string(e.Kind)), zap.Error(err))
			continue
		}

		// The entry is settled even if ctx was cancelled during Submit.
		if err := o.Remove(context.WithoutCancel(ctx), e.Payload); err != nil {
			return report, err
		}
	}

	o.logger.Info("outbox flushed",
		zap.Int("delivered", report.Delivered),
		zap.Int("satisfied", report.Satisfied),
		zap.Int("kept", report.Kept),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}
