// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrDuplicateID  = errors.New("book id already in use")
	ErrInvalidField = errors.New("invalid book field")
	ErrInvalidValue = errors.New("invalid value")
)

// Book is one row of the books table.
type Book struct {
	ID       int64  `json:"id" db:"id"`
	Title    string `json:"title" db:"title"`
	Author   string `json:"author" db:"author"`
	Quantity int64  `json:"quantity" db:"qty"`
}

// Field names a single updatable column of a book.
type Field int

const (
	FieldID Field = iota + 1
	FieldTitle
	FieldAuthor
	FieldQuantity
)

// Column is the SQL column behind the field. Update statements splice this
// into their text, so it only ever returns one of four fixed names.
func (f Field) Column() string {
	switch f {
	case FieldID:
		return "id"
	case FieldTitle:
		return "title"
	case FieldAuthor:
		return "author"
	case FieldQuantity:
		return "qty"
	default:
		return ""
	}
}

func (f Field) String() string {
	if c := f.Column(); c != "" {
		return c
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

func (f Field) numeric() bool {
	return f == FieldID || f == FieldQuantity
}

// ParseValue converts operator input for f into the value bound to the
// UPDATE statement: int64 for id and qty, the raw string otherwise.
func ParseValue(f Field, raw string) (interface{}, error) {
	if f.Column() == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, f)
	}
	if !f.numeric() {
		return raw, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a whole number, got %q", ErrInvalidValue, f, raw)
	}
	if f == FieldQuantity && n < 0 {
		return nil, fmt.Errorf("%w: qty must not be negative, got %d", ErrInvalidValue, n)
	}
	return n, nil
}

// value returns the current value of f on b, formatted for the journal.
func (b *Book) value(f Field) string {
	switch f {
	case FieldID:
		return strconv.FormatInt(b.ID, 10)
	case FieldTitle:
		return b.Title
	case FieldAuthor:
		return b.Author
	case FieldQuantity:
		return strconv.FormatInt(b.Quantity, 10)
	}
	return ""
}

var titleNoise = strings.NewReplacer("'", "", ",", "")

// NormalizeTitle lowercases s and drops apostrophes and commas, so that
// "Poe's Tales", "POE'S TALES" and "Poes Tales" all normalize alike.
func NormalizeTitle(s string) string {
	return titleNoise.Replace(strings.ToLower(s))
}

// TitleMatches reports whether the normalized stored title contains the
// normalized query.
func TitleMatches(stored, query string) bool {
	return strings.Contains(NormalizeTitle(stored), NormalizeTitle(query))
}
