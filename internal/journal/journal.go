// internal/journal/journal.go
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ebookstore/internal/storage"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	ActionAdded   = "added"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

var ErrUnknownAction = errors.New("journal: unknown action")

// Entry is one recorded change to a book row.
type Entry struct {
	Seq        int64     `json:"seq"`
	BookID     int64     `json:"book_id"`
	Action     string    `json:"action"`
	Field      string    `json:"field,omitempty"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	SessionID  string    `json:"session_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// row mirrors book_changes; recorded_at is kept as RFC 3339 text so the
// same schema reads back identically on every driver.
type row struct {
	Seq        int64  `db:"seq"`
	BookID     int64  `db:"book_id"`
	Action     string `db:"action"`
	Field      string `db:"field"`
	OldValue   string `db:"old_value"`
	NewValue   string `db:"new_value"`
	SessionID  string `db:"session_id"`
	RecordedAt string `db:"recorded_at"`
}

// Journal appends and reads book change entries.
type Journal struct {
	db     *sqlx.DB
	tracer trace.Tracer
	now    func() time.Time
}

// New creates a journal on top of an open connection.
func New(db *sqlx.DB) *Journal {
	return &Journal{
		db:     db,
		tracer: otel.Tracer("ebookstore/journal"),
		now:    time.Now,
	}
}

// EnsureSchema creates book_changes when it does not exist yet.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	return storage.CreateTables(ctx, j.db, []string{
		`CREATE TABLE IF NOT EXISTS book_changes (
			` + storage.AutoIncrementKey(j.db.DriverName(), "seq") + `,
			book_id BIGINT NOT NULL,
			action VARCHAR(16) NOT NULL,
			field VARCHAR(16) NOT NULL,
			old_value TEXT NOT NULL,
			new_value TEXT NOT NULL,
			session_id VARCHAR(64) NOT NULL,
			recorded_at VARCHAR(64) NOT NULL
		)`,
	})
}

// Append records a single change. RecordedAt is stamped here.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.Int64("book.id", e.BookID),
			attribute.String("change.action", e.Action),
			attribute.String("change.field", e.Field),
		),
	)
	defer span.End()

	switch e.Action {
	case ActionAdded, ActionUpdated, ActionDeleted:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, e.Action)
	}

	recordedAt := j.now().UTC().Format(time.RFC3339Nano)
	_, err := j.db.ExecContext(ctx, j.db.Rebind(`
		INSERT INTO book_changes (book_id, action, field, old_value, new_value, session_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), e.BookID, e.Action, e.Field, e.OldValue, e.NewValue, e.SessionID, recordedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert change for book %d: %w", e.BookID, err)
	}
	return nil
}

// Rekey moves every change recorded under oldID to newID, so a book keeps
// its history when its id is rewritten.
func (j *Journal) Rekey(ctx context.Context, oldID, newID int64) error {
	ctx, span := j.tracer.Start(ctx, "journal.rekey",
		trace.WithAttributes(
			attribute.Int64("book.id", oldID),
			attribute.Int64("book.new_id", newID),
		),
	)
	defer span.End()

	_, err := j.db.ExecContext(ctx, j.db.Rebind(`
		UPDATE book_changes SET book_id = ? WHERE book_id = ?
	`), newID, oldID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("rekey changes of book %d to %d: %w", oldID, newID, err)
	}
	return nil
}

// Load returns every change recorded under bookID, oldest first.
func (j *Journal) Load(ctx context.Context, bookID int64) ([]Entry, error) {
	ctx, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(attribute.Int64("book.id", bookID)),
	)
	defer span.End()

	var rows []row
	err := j.db.SelectContext(ctx, &rows, j.db.Rebind(`
		SELECT seq, book_id, action, field, old_value, new_value, session_id, recorded_at
		FROM book_changes
		WHERE book_id = ?
		ORDER BY seq ASC
	`), bookID)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		recordedAt, err := time.Parse(time.RFC3339Nano, r.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at of change %d: %w", r.Seq, err)
		}
		entries = append(entries, Entry{
			Seq:        r.Seq,
			BookID:     r.BookID,
			Action:     r.Action,
			Field:      r.Field,
			OldValue:   r.OldValue,
			NewValue:   r.NewValue,
			SessionID:  r.SessionID,
			RecordedAt: recordedAt,
		})
	}

	span.SetAttributes(attribute.Int("changes.loaded", len(entries)))
	return entries, nil
}
