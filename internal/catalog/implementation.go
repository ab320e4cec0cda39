// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"ebookstore/internal/journal"
	"ebookstore/internal/storage"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const selectBooks = `
	SELECT id, COALESCE(title, '') AS title, COALESCE(author, '') AS author, COALESCE(qty, 0) AS qty
	FROM books
`

// EnsureSchema creates the books table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	return storage.CreateTables(ctx, db, []string{
		`CREATE TABLE IF NOT EXISTS books (
			id INTEGER PRIMARY KEY,
			title TEXT,
			author TEXT,
			qty INTEGER
		)`,
	})
}

// service implements the Service interface.
type service struct {
	db           *sqlx.DB
	journal      *journal.Journal
	sessionID    string
	tracer       trace.Tracer
	rowsAffected metric.Int64Counter
}

// NewService creates a catalog service bound to one connection. Every
// mutation is journaled under sessionID.
func NewService(db *sqlx.DB, j *journal.Journal, sessionID string) Service {
	counter, err := otel.Meter("ebookstore/catalog").Int64Counter("catalog.rows_affected",
		metric.WithDescription("Rows written by catalog insert, update and delete statements"),
	)
	if err != nil {
		log.Printf("catalog: rows_affected counter: %v", err)
	}
	return &service{
		db:           db,
		journal:      j,
		sessionID:    sessionID,
		tracer:       otel.Tracer("ebookstore/catalog"),
		rowsAffected: counter,
	}
}

func (s *service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("session.id", s.sessionID))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// List returns every book ordered by id.
func (s *service) List(ctx context.Context) ([]*Book, error) {
	ctx, span := s.startSpan(ctx, "catalog.list")
	defer span.End()

	books, err := s.all(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("books.count", len(books)))
	return books, nil
}

func (s *service) all(ctx context.Context) ([]*Book, error) {
	var books []*Book
	if err := s.db.SelectContext(ctx, &books, selectBooks+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// Exists reports whether a row with id is present.
func (s *service) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, span := s.startSpan(ctx, "catalog.exists", attribute.Int64("book.id", id))
	defer span.End()

	var count int
	err := s.db.GetContext(ctx, &count, s.db.Rebind(`SELECT COUNT(*) FROM books WHERE id = ?`), id)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to count books with id %d: %w", id, err)
	}
	return count > 0, nil
}

// Add inserts a new book. The caller is expected to have checked Exists;
// a key collision that slips through still comes back as ErrDuplicateID.
func (s *service) Add(ctx context.Context, book *Book) (int64, error) {
	ctx, span := s.startSpan(ctx, "catalog.add", attribute.Int64("book.id", book.ID))
	defer span.End()

	if book.Quantity < 0 {
		return 0, fmt.Errorf("%w: qty must not be negative, got %d", ErrInvalidValue, book.Quantity)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO books (id, title, author, qty)
		VALUES (?, ?, ?, ?)
	`), book.ID, book.Title, book.Author, book.Quantity)
	if err != nil {
		span.RecordError(err)
		if storage.IsDuplicateKey(err) {
			return 0, fmt.Errorf("%w: %d", ErrDuplicateID, book.ID)
		}
		return 0, fmt.Errorf("failed to insert book %d: %w", book.ID, err)
	}

	n, err := s.affected(ctx, res, "add")
	if err != nil {
		return n, err
	}

	s.record(ctx, journal.Entry{
		BookID:   book.ID,
		Action:   journal.ActionAdded,
		NewValue: summarize(book),
	})
	return n, nil
}

// Get retrieves a book by id.
func (s *service) Get(ctx context.Context, id int64) (*Book, error) {
	ctx, span := s.startSpan(ctx, "catalog.get", attribute.Int64("book.id", id))
	defer span.End()

	book := &Book{}
	err := s.db.GetContext(ctx, book, s.db.Rebind(selectBooks+` WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrBookNotFound, id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return book, nil
}

// FindByTitle returns the books whose normalized title contains the
// normalized query, ordered by id. Matching happens here rather than in SQL
// so it behaves the same on every driver.
func (s *service) FindByTitle(ctx context.Context, title string) ([]*Book, error) {
	ctx, span := s.startSpan(ctx, "catalog.find_by_title")
	defer span.End()

	return s.filter(ctx, span, func(b *Book) bool {
		return TitleMatches(b.Title, title)
	})
}

// FindByAuthor returns the books whose author contains author, matching
// case as typed.
func (s *service) FindByAuthor(ctx context.Context, author string) ([]*Book, error) {
	ctx, span := s.startSpan(ctx, "catalog.find_by_author")
	defer span.End()

	return s.filter(ctx, span, func(b *Book) bool {
		return strings.Contains(b.Author, author)
	})
}

func (s *service) filter(ctx context.Context, span trace.Span, keep func(*Book) bool) ([]*Book, error) {
	books, err := s.all(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var matches []*Book
	for _, b := range books {
		if keep(b) {
			matches = append(matches, b)
		}
	}
	span.SetAttributes(attribute.Int("books.matched", len(matches)))
	return matches, nil
}

// UpdateField sets one column of the book currently stored under id.
// value may be the raw operator string or an already parsed value.
func (s *service) UpdateField(ctx context.Context, id int64, field Field, value interface{}) (int64, error) {
	ctx, span := s.startSpan(ctx, "catalog.update",
		attribute.Int64("book.id", id),
		attribute.String("book.field", field.String()),
	)
	defer span.End()

	column := field.Column()
	if column == "" {
		return 0, fmt.Errorf("%w: %v", ErrInvalidField, field)
	}
	value, err := checkValue(field, value)
	if err != nil {
		return 0, err
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if field == FieldID && value.(int64) != id {
		taken, err := s.Exists(ctx, value.(int64))
		if err != nil {
			return 0, err
		}
		if taken {
			return 0, fmt.Errorf("%w: %d", ErrDuplicateID, value)
		}
	}

	query := fmt.Sprintf(`UPDATE books SET %s = ? WHERE id = ?`, column)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), value, id)
	if err != nil {
		span.RecordError(err)
		if storage.IsDuplicateKey(err) {
			return 0, fmt.Errorf("%w: %v", ErrDuplicateID, value)
		}
		return 0, fmt.Errorf("failed to update %s of book %d: %w", column, id, err)
	}

	n, err := s.affected(ctx, res, "update")
	if err != nil {
		return n, err
	}

	// The book's history follows it to its new id.
	currentID := id
	if field == FieldID && value.(int64) != id {
		currentID = value.(int64)
		s.rekey(ctx, id, currentID)
	}
	s.record(ctx, journal.Entry{
		BookID:   currentID,
		Action:   journal.ActionUpdated,
		Field:    column,
		OldValue: book.value(field),
		NewValue: fmt.Sprint(value),
	})
	return n, nil
}

func checkValue(field Field, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return ParseValue(field, v)
	case int:
		return checkValue(field, int64(v))
	case int64:
		if !field.numeric() {
			return nil, fmt.Errorf("%w: %s expects text", ErrInvalidValue, field)
		}
		if field == FieldQuantity && v < 0 {
			return nil, fmt.Errorf("%w: qty must not be negative, got %d", ErrInvalidValue, v)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T for %s", ErrInvalidValue, value, field)
	}
}

// Delete removes the book stored under id.
func (s *service) Delete(ctx context.Context, id int64) (int64, error) {
	ctx, span := s.startSpan(ctx, "catalog.delete", attribute.Int64("book.id", id))
	defer span.End()

	book, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM books WHERE id = ?`), id)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete book %d: %w", id, err)
	}

	n, err := s.affected(ctx, res, "delete")
	if err != nil {
		return n, err
	}

	s.record(ctx, journal.Entry{
		BookID:   id,
		Action:   journal.ActionDeleted,
		OldValue: summarize(book),
	})
	return n, nil
}

// History returns the journaled changes for id, oldest first.
func (s *service) History(ctx context.Context, id int64) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Load(ctx, id)
}

func (s *service) affected(ctx context.Context, res sql.Result, op string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: could not get rows affected: %w", s.db.DriverName(), err)
	}
	s.rowsAffected.Add(ctx, n, metric.WithAttributes(attribute.String("operation", op)))
	return n, nil
}

// record appends to the journal. A failed append is logged only: the book
// statement has already run and is not undone.
func (s *service) record(ctx context.Context, e journal.Entry) {
	if s.journal == nil {
		return
	}
	e.SessionID = s.sessionID
	if err := s.journal.Append(ctx, e); err != nil {
		log.Printf("catalog: journal %s of book %d: %v", e.Action, e.BookID, err)
	}
}

// rekey moves the journal entries of a renumbered book. Like record, a
// failure is logged only.
func (s *service) rekey(ctx context.Context, oldID, newID int64) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Rekey(ctx, oldID, newID); err != nil {
		log.Printf("catalog: journal rekey of book %d to %d: %v", oldID, newID, err)
	}
}

func summarize(b *Book) string {
	return fmt.Sprintf("%q by %s, qty %d", b.Title, b.Author, b.Quantity)
}
