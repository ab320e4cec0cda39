// internal/catalog/service.go
package catalog

import (
	"context"

	"ebookstore/internal/journal"
)

// Service defines the interface for the book catalog.
type Service interface {
	List(ctx context.Context) ([]*Book, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Add(ctx context.Context, book *Book) (int64, error)
	Get(ctx context.Context, id int64) (*Book, error)
	FindByTitle(ctx context.Context, title string) ([]*Book, error)
	FindByAuthor(ctx context.Context, author string) ([]*Book, error)
	UpdateField(ctx context.Context, id int64, field Field, value interface{}) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	History(ctx context.Context, id int64) ([]journal.Entry, error)
}
