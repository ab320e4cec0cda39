// internal/catalog/handler.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"ebookstore/internal/prompt"
)

const (
	tableHeader = "%-5s %-50s %-30s %-4s\n"
	tableRow    = "%-5d %-50s %-30s %-4d\n"
)

// Handler drives the interactive menu: it prompts the operator, calls the
// service and prints the outcome. Every operation returns to the menu.
type Handler struct {
	service Service
	in      *prompt.Prompter
	out     io.Writer
}

func NewHandler(service Service, in io.Reader, out io.Writer) *Handler {
	return &Handler{
		service: service,
		in:      prompt.New(in, out),
		out:     out,
	}
}

// Run loops over list, menu and operation until the operator picks 0 or
// input ends. Operation failures are reported and never end the loop.
func (h *Handler) Run(ctx context.Context) error {
	for {
		h.HandleList(ctx)
		h.printMenu()

		choice, err := h.in.Line("Choose an option: ")
		if err != nil {
			return endOfInput(err)
		}

		switch strings.TrimSpace(choice) {
		case "1":
			err = h.HandleAdd(ctx)
		case "2":
			err = h.HandleUpdate(ctx)
		case "3":
			err = h.HandleDelete(ctx)
		case "4":
			err = h.HandleSearch(ctx)
		case "5":
			err = h.HandleHistory(ctx)
		case "0":
			fmt.Fprintln(h.out, "Exiting the program.")
			return nil
		default:
			fmt.Fprintln(h.out, "Invalid option. Please try again.")
		}
		if err != nil {
			return endOfInput(err)
		}
	}
}

// endOfInput turns a closed stdin into a clean exit.
func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) printMenu() {
	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "--- Bookstore Management System ---")
	fmt.Fprintln(h.out, "1. Enter book")
	fmt.Fprintln(h.out, "2. Update book")
	fmt.Fprintln(h.out, "3. Delete book")
	fmt.Fprintln(h.out, "4. Search books")
	fmt.Fprintln(h.out, "5. Show change history")
	fmt.Fprintln(h.out, "0. Exit")
}

// HandleList prints every book as a fixed-width table.
func (h *Handler) HandleList(ctx context.Context) {
	books, err := h.service.List(ctx)
	if err != nil {
		log.Printf("list books: %v", err)
		fmt.Fprintln(h.out, "Error occurred while fetching books.")
		return
	}

	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "Current Books:")
	fmt.Fprintf(h.out, tableHeader, "ID", "Title", "Author", "Qty")
	for _, b := range books {
		fmt.Fprintf(h.out, tableRow, b.ID, b.Title, b.Author, b.Quantity)
	}
}

// HandleAdd prompts for a new book. Only io errors are returned; everything
// else is reported to the operator.
func (h *Handler) HandleAdd(ctx context.Context) error {
	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "Enter details of the book:")

	var id int64
	for {
		n, err := h.in.Int("ID: ")
		if errors.Is(err, prompt.ErrNotNumber) {
			fmt.Fprintln(h.out, "Invalid book ID format.")
			return nil
		}
		if err != nil {
			return err
		}

		taken, err := h.service.Exists(ctx, n)
		if err != nil {
			h.reportError("check book id", err)
			return nil
		}
		if !taken {
			id = n
			break
		}
		fmt.Fprintln(h.out, "ID already in use. Try another.")
	}

	title, err := h.in.Line("Title: ")
	if err != nil {
		return err
	}
	author, err := h.in.Line("Author: ")
	if err != nil {
		return err
	}
	qtyRaw, err := h.in.Line("Quantity: ")
	if err != nil {
		return err
	}
	qty, err := ParseValue(FieldQuantity, qtyRaw)
	if err != nil {
		fmt.Fprintln(h.out, "Invalid quantity.")
		return nil
	}

	n, err := h.service.Add(ctx, &Book{ID: id, Title: title, Author: author, Quantity: qty.(int64)})
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			fmt.Fprintln(h.out, "ID already in use.")
			return nil
		}
		h.reportError("add book", err)
		return nil
	}
	fmt.Fprintf(h.out, "%d book(s) entered.\n", n)
	return nil
}

// HandleUpdate finds one book and rewrites a single field of it.
func (h *Handler) HandleUpdate(ctx context.Context) error {
	book, err := h.lookup(ctx, "update")
	if err != nil || book == nil {
		return err
	}

	fmt.Fprintln(h.out, "Current Book Details:")
	h.printDetails(book)

	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "What would you like to update?")
	fmt.Fprintln(h.out, "1. ID")
	fmt.Fprintln(h.out, "2. Title")
	fmt.Fprintln(h.out, "3. Author")
	fmt.Fprintln(h.out, "4. Quantity")
	choice, err := h.in.Choose("Choose an option (1-4): ", []string{"1", "2", "3", "4"},
		"Invalid option. Please choose a number between 1 and 4.")
	if err != nil {
		return err
	}
	n, _ := strconv.Atoi(choice)
	field := Field(n)

	raw, err := h.in.Line(fmt.Sprintf("Enter new %s: ", field.Column()))
	if err != nil {
		return err
	}
	value, err := ParseValue(field, raw)
	if err != nil {
		fmt.Fprintf(h.out, "Invalid %s value.\n", field.Column())
		return nil
	}

	rows, err := h.service.UpdateField(ctx, book.ID, field, value)
	switch {
	case errors.Is(err, ErrDuplicateID):
		fmt.Fprintln(h.out, "ID already in use.")
	case errors.Is(err, ErrBookNotFound):
		fmt.Fprintln(h.out, "Book not found.")
	case err != nil:
		h.reportError("update book", err)
	default:
		fmt.Fprintf(h.out, "%d book(s) updated.\n", rows)
	}
	return nil
}

// HandleDelete finds one book and removes it after a y/n confirmation.
func (h *Handler) HandleDelete(ctx context.Context) error {
	book, err := h.lookup(ctx, "delete")
	if err != nil || book == nil {
		return err
	}

	fmt.Fprintln(h.out, "Book Details:")
	h.printDetails(book)

	answer, err := h.in.Choose("Are you sure you want to delete this book (y/n)? ",
		[]string{"y", "n", "Y", "N"}, "Invalid input. Please enter 'y' or 'n'.")
	if err != nil {
		return err
	}
	if strings.ToLower(answer) != "y" {
		fmt.Fprintln(h.out, "Book deletion cancelled.")
		return nil
	}

	rows, err := h.service.Delete(ctx, book.ID)
	switch {
	case errors.Is(err, ErrBookNotFound):
		fmt.Fprintln(h.out, "Book not found.")
	case err != nil:
		h.reportError("delete book", err)
	default:
		fmt.Fprintf(h.out, "%d book(s) deleted.\n", rows)
	}
	return nil
}

// lookup asks whether to find the book by id or by title and resolves it
// to exactly one record. A nil book with a nil error means the operation
// was abandoned and the reason has already been printed.
func (h *Handler) lookup(ctx context.Context, verb string) (*Book, error) {
	fmt.Fprintln(h.out)
	fmt.Fprintf(h.out, "How would you like to find the book you want to %s?\n", verb)
	fmt.Fprintln(h.out, "1. By ID")
	fmt.Fprintln(h.out, "2. By Title")
	mode, err := h.in.Choose("Enter your choice (1 or 2): ", []string{"1", "2"},
		"Invalid choice. Please enter '1' or '2'.")
	if err != nil {
		return nil, err
	}

	if mode == "1" {
		id, err := h.in.Int("Enter the Book ID: ")
		if errors.Is(err, prompt.ErrNotNumber) {
			fmt.Fprintln(h.out, "Invalid book ID format.")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		book, err := h.service.Get(ctx, id)
		if errors.Is(err, ErrBookNotFound) {
			fmt.Fprintln(h.out, "Book not found.")
			return nil, nil
		}
		if err != nil {
			h.reportError("get book", err)
			return nil, nil
		}
		return book, nil
	}

	title, err := h.in.Line("Enter the Book Title: ")
	if err != nil {
		return nil, err
	}
	matches, err := h.service.FindByTitle(ctx, title)
	if err != nil {
		h.reportError("find book by title", err)
		return nil, nil
	}
	return h.pick(matches)
}

// pick resolves a fuzzy title lookup. Several matches are listed and the
// operator chooses one by id instead of the first row winning silently.
func (h *Handler) pick(matches []*Book) (*Book, error) {
	switch len(matches) {
	case 0:
		fmt.Fprintln(h.out, "Book not found.")
		return nil, nil
	case 1:
		return matches[0], nil
	}

	fmt.Fprintf(h.out, "%d books match that title:\n", len(matches))
	fmt.Fprintf(h.out, tableHeader, "ID", "Title", "Author", "Qty")
	ids := make([]string, len(matches))
	byID := make(map[string]*Book, len(matches))
	for i, b := range matches {
		fmt.Fprintf(h.out, tableRow, b.ID, b.Title, b.Author, b.Quantity)
		ids[i] = strconv.FormatInt(b.ID, 10)
		byID[ids[i]] = b
	}

	chosen, err := h.in.Choose("Enter the ID of the book you mean: ", ids,
		"Please enter one of the IDs listed above.")
	if err != nil {
		return nil, err
	}
	return byID[chosen], nil
}

// HandleSearch looks books up by id, title or author and prints every match.
func (h *Handler) HandleSearch(ctx context.Context) error {
	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "Search by:")
	fmt.Fprintln(h.out, "1. ID")
	fmt.Fprintln(h.out, "2. Title")
	fmt.Fprintln(h.out, "3. Author")
	kind, err := h.in.Choose("Enter search type: ", []string{"1", "2", "3"}, "Invalid search type.")
	if err != nil {
		return err
	}

	var books []*Book
	switch kind {
	case "1":
		id, err := h.in.Int("Enter ID number: ")
		if errors.Is(err, prompt.ErrNotNumber) {
			fmt.Fprintln(h.out, "Invalid book ID format.")
			return nil
		}
		if err != nil {
			return err
		}
		book, err := h.service.Get(ctx, id)
		if err != nil && !errors.Is(err, ErrBookNotFound) {
			h.reportError("search by id", err)
			return nil
		}
		if book != nil {
			books = append(books, book)
		}
	case "2":
		title, err := h.in.Line("Enter title: ")
		if err != nil {
			return err
		}
		if books, err = h.service.FindByTitle(ctx, title); err != nil {
			h.reportError("search by title", err)
			return nil
		}
	case "3":
		author, err := h.in.Line("Enter author: ")
		if err != nil {
			return err
		}
		if books, err = h.service.FindByAuthor(ctx, author); err != nil {
			h.reportError("search by author", err)
			return nil
		}
	}

	if len(books) == 0 {
		fmt.Fprintln(h.out, "Sorry, this book is not available.")
		return nil
	}
	fmt.Fprintf(h.out, "\nYay! We have %d book(s) from this Search!\n\n", len(books))
	for _, b := range books {
		fmt.Fprintf(h.out, "ID: %d\n", b.ID)
		fmt.Fprintf(h.out, "Title: %s\n", b.Title)
		fmt.Fprintf(h.out, "Author: %s\n", b.Author)
		fmt.Fprintf(h.out, "Quantity: %d available in stock!\n\n", b.Quantity)
	}
	return nil
}

// HandleHistory prints the journaled changes of one book id.
func (h *Handler) HandleHistory(ctx context.Context) error {
	fmt.Fprintln(h.out)
	id, err := h.in.Int("Enter the Book ID: ")
	if errors.Is(err, prompt.ErrNotNumber) {
		fmt.Fprintln(h.out, "Invalid book ID format.")
		return nil
	}
	if err != nil {
		return err
	}

	entries, err := h.service.History(ctx, id)
	if err != nil {
		h.reportError("load history", err)
		return nil
	}
	if len(entries) == 0 {
		fmt.Fprintln(h.out, "No changes recorded for this book.")
		return nil
	}

	fmt.Fprintf(h.out, "Changes for book %d:\n", id)
	for _, e := range entries {
		when := e.RecordedAt.Local().Format("2006-01-02 15:04:05")
		switch {
		case e.Field != "":
			fmt.Fprintf(h.out, "%s  %-8s %s: %s -> %s\n", when, e.Action, e.Field, e.OldValue, e.NewValue)
		case e.NewValue != "":
			fmt.Fprintf(h.out, "%s  %-8s %s\n", when, e.Action, e.NewValue)
		default:
			fmt.Fprintf(h.out, "%s  %-8s %s\n", when, e.Action, e.OldValue)
		}
	}
	return nil
}

func (h *Handler) printDetails(b *Book) {
	fmt.Fprintf(h.out, "ID: %d\n", b.ID)
	fmt.Fprintf(h.out, "Title: %s\n", b.Title)
	fmt.Fprintf(h.out, "Author: %s\n", b.Author)
	fmt.Fprintf(h.out, "Quantity: %d\n", b.Quantity)
}

// reportError logs the cause and tells the operator the operation was
// abandoned.
func (h *Handler) reportError(op string, err error) {
	log.Printf("%s: %v", op, err)
	fmt.Fprintf(h.out, "Database error, operation abandoned: %v\n", err)
}
