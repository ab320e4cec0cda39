// internal/catalog/faults.go
package catalog

import (
	"context"

	"ebookstore/internal/chaos"
	"ebookstore/internal/journal"
)

// WithFaults wraps next so every call first passes through inj. Operation
// names match the span names of the SQL-backed service.
func WithFaults(next Service, inj *chaos.Injector) Service {
	return &faultyService{next: next, inj: inj}
}

type faultyService struct {
	next Service
	inj  *chaos.Injector
}

func (f *faultyService) List(ctx context.Context) ([]*Book, error) {
	if err := f.inj.Inject(ctx, "catalog.list"); err != nil {
		return nil, err
	}
	return f.next.List(ctx)
}

func (f *faultyService) Exists(ctx context.Context, id int64) (bool, error) {
	if err := f.inj.Inject(ctx, "catalog.exists"); err != nil {
		return false, err
	}
	return f.next.Exists(ctx, id)
}

func (f *faultyService) Add(ctx context.Context, book *Book) (int64, error) {
	if err := f.inj.Inject(ctx, "catalog.add"); err != nil {
		return 0, err
	}
	return f.next.Add(ctx, book)
}

func (f *faultyService) Get(ctx context.Context, id int64) (*Book, error) {
	if err := f.inj.Inject(ctx, "catalog.get"); err != nil {
		return nil, err
	}
	return f.next.Get(ctx, id)
}

func (f *faultyService) FindByTitle(ctx context.Context, title string) ([]*Book, error) {
	if err := f.inj.Inject(ctx, "catalog.find_by_title"); err != nil {
		return nil, err
	}
	return f.next.FindByTitle(ctx, title)
}

func (f *faultyService) FindByAuthor(ctx context.Context, author string) ([]*Book, error) {
	if err := f.inj.Inject(ctx, "catalog.find_by_author"); err != nil {
		return nil, err
	}
	return f.next.FindByAuthor(ctx, author)
}

func (f *faultyService) UpdateField(ctx context.Context, id int64, field Field, value interface{}) (int64, error) {
	if err := f.inj.Inject(ctx, "catalog.update"); err != nil {
		return 0, err
	}
	return f.next.UpdateField(ctx, id, field, value)
}

func (f *faultyService) Delete(ctx context.Context, id int64) (int64, error) {
	if err := f.inj.Inject(ctx, "catalog.delete"); err != nil {
		return 0, err
	}
	return f.next.Delete(ctx, id)
}

func (f *faultyService) History(ctx context.Context, id int64) ([]journal.Entry, error) {
	if err := f.inj.Inject(ctx, "catalog.history"); err != nil {
		return nil, err
	}
	return f.next.History(ctx, id)
}
