// internal/catalog/implementation_test.go
package catalog

import (
	"context"
	"testing"

	"ebookstore/internal/journal"
	"ebookstore/internal/storage"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (Service, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureSchema(ctx, db))
	j := journal.New(db)
	require.NoError(t, j.EnsureSchema(ctx))

	return NewService(db, j, "test-session"), db
}

func seed(t *testing.T, svc Service, books ...*Book) {
	t.Helper()
	for _, b := range books {
		n, err := svc.Add(context.Background(), b)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	}
}

func TestAddAndList(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	seed(t, svc,
		&Book{ID: 7, Title: "Dune", Author: "Frank Herbert", Quantity: 3},
		&Book{ID: 2, Title: "Emma", Author: "Jane Austen", Quantity: 1},
	)

	books, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, int64(2), books[0].ID)
	assert.Equal(t, &Book{ID: 7, Title: "Dune", Author: "Frank Herbert", Quantity: 3}, books[1])
}

func TestListEmpty(t *testing.T) {
	svc, _ := setupService(t)

	books, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestListToleratesNullColumns(t *testing.T) {
	svc, db := setupService(t)

	_, err := db.Exec(`INSERT INTO books (id) VALUES (4)`)
	require.NoError(t, err)

	books, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, &Book{ID: 4}, books[0])
}

func TestAddDuplicateID(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

	_, err := svc.Add(ctx, &Book{ID: 1, Title: "Emma", Author: "Jane Austen", Quantity: 1})
	assert.ErrorIs(t, err, ErrDuplicateID)

	book, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
}

func TestAddRejectsNegativeQuantity(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Add(context.Background(), &Book{ID: 1, Title: "Dune", Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidValue)

	exists, err := svc.Exists(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExists(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	seed(t, svc, &Book{ID: 0, Title: "Zero", Author: "Nobody", Quantity: 0})

	exists, err := svc.Exists(ctx, 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetNotFound(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestFindByTitle(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	seed(t, svc,
		&Book{ID: 1, Title: "Poe's Tales", Author: "Edgar Allan Poe", Quantity: 2},
		&Book{ID: 2, Title: "Dune", Author: "Frank Herbert", Quantity: 3},
		&Book{ID: 3, Title: "Dune Messiah", Author: "Frank Herbert", Quantity: 1},
	)

	books, err := svc.FindByTitle(ctx, "poes tales")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, int64(1), books[0].ID)

	books, err = svc.FindByTitle(ctx, "DUNE")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, int64(2), books[0].ID)
	assert.Equal(t, int64(3), books[1].ID)

	books, err = svc.FindByTitle(ctx, "Zzz")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestFindByAuthorIsCaseSensitive(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	seed(t, svc,
		&Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3},
		&Book{ID: 2, Title: "Emma", Author: "Jane Austen", Quantity: 1},
	)

	books, err := svc.FindByAuthor(ctx, "Herbert")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)

	books, err = svc.FindByAuthor(ctx, "herbert")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestUpdateField(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value interface{}
		want  Book
	}{
		{"title", FieldTitle, "Dune Messiah", Book{ID: 1, Title: "Dune Messiah", Author: "Frank Herbert", Quantity: 3}},
		{"author", FieldAuthor, "F. Herbert", Book{ID: 1, Title: "Dune", Author: "F. Herbert", Quantity: 3}},
		{"quantity from string", FieldQuantity, "5", Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 5}},
		{"quantity from int", FieldQuantity, 0, Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 0}},
		{"id", FieldID, int64(9), Book{ID: 9, Title: "Dune", Author: "Frank Herbert", Quantity: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setupService(t)
			ctx := context.Background()
			seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

			n, err := svc.UpdateField(ctx, 1, tt.field, tt.value)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			book, err := svc.Get(ctx, tt.want.ID)
			require.NoError(t, err)
			assert.Equal(t, &tt.want, book)
		})
	}
}

func TestUpdateFieldErrors(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	seed(t, svc,
		&Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3},
		&Book{ID: 2, Title: "Emma", Author: "Jane Austen", Quantity: 1},
	)

	_, err := svc.UpdateField(ctx, 99, FieldTitle, "Nothing")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = svc.UpdateField(ctx, 1, FieldID, int64(2))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = svc.UpdateField(ctx, 1, FieldQuantity, "many")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = svc.UpdateField(ctx, 1, FieldQuantity, int64(-2))
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = svc.UpdateField(ctx, 1, FieldTitle, int64(5))
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = svc.UpdateField(ctx, 1, Field(7), "x")
	assert.ErrorIs(t, err, ErrInvalidField)

	books, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*Book{
		{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3},
		{ID: 2, Title: "Emma", Author: "Jane Austen", Quantity: 1},
	}, books)
}

func TestUpdateIDToItself(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

	n, err := svc.UpdateField(ctx, 1, FieldID, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDelete(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

	n, err := svc.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = svc.Delete(ctx, 1)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestHistoryRecordsEveryMutation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

	_, err := svc.UpdateField(ctx, 1, FieldQuantity, "5")
	require.NoError(t, err)
	_, err = svc.Delete(ctx, 1)
	require.NoError(t, err)

	entries, err := svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, journal.ActionAdded, entries[0].Action)
	assert.Equal(t, `"Dune" by Frank Herbert, qty 3`, entries[0].NewValue)

	assert.Equal(t, journal.ActionUpdated, entries[1].Action)
	assert.Equal(t, "qty", entries[1].Field)
	assert.Equal(t, "3", entries[1].OldValue)
	assert.Equal(t, "5", entries[1].NewValue)

	assert.Equal(t, journal.ActionDeleted, entries[2].Action)
	assert.Equal(t, `"Dune" by Frank Herbert, qty 5`, entries[2].OldValue)

	for _, e := range entries {
		assert.Equal(t, "test-session", e.SessionID)
	}
}

func TestHistoryFollowsIDRewrite(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

	_, err := svc.UpdateField(ctx, 1, FieldID, int64(2))
	require.NoError(t, err)

	entries, err := svc.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.ActionAdded, entries[0].Action)
	assert.Equal(t, journal.ActionUpdated, entries[1].Action)
	assert.Equal(t, "id", entries[1].Field)
	assert.Equal(t, "1", entries[1].OldValue)
	assert.Equal(t, "2", entries[1].NewValue)

	old, err := svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, old)

	seed(t, svc, &Book{ID: 1, Title: "Emma", Author: "Jane Austen", Quantity: 1})
	fresh, err := svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Contains(t, fresh[0].NewValue, "Emma")
}

func TestFailedMutationsAreNotJournaled(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

	_, err := svc.Add(ctx, &Book{ID: 1, Title: "Again"})
	require.Error(t, err)
	_, err = svc.UpdateField(ctx, 1, FieldQuantity, "-1")
	require.Error(t, err)

	entries, err := svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestServiceWithoutJournal(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, EnsureSchema(ctx, db))

	svc := NewService(db, nil, "")
	seed(t, svc, &Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Quantity: 3})

	entries, err := svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
