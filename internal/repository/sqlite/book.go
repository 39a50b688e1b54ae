package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository"
)

var _ repository.BookRepository = (*BookRepo)(nil)

// BookRepo implements repository.BookRepository on top of a shared *DB.
//
// Note what is NOT here: no IncrementAvailable / DecrementAvailable. The
// copy counter only moves inside TransactionRepo.Issue and .Return, paired
// with the loan write in the same database transaction. A standalone
// counter mutation would be a correctness hazard, so the API doesn't offer
// one.
type BookRepo struct {
	db *DB
}

func NewBookRepo(db *DB) *BookRepo {
	return &BookRepo{db: db}
}

// Create inserts a new book. A duplicate ISBN maps to ErrConflict.
func (r *BookRepo) Create(ctx context.Context, book *model.Book) error {
	book.CreatedAt = time.Now()

	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO books (isbn, title, author, publisher, category, total_copies, available_copies, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ISBN,
		book.Title,
		book.Author,
		book.Publisher,
		book.Category,
		book.TotalCopies,
		book.AvailableCopies,
		book.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("book", book.ISBN)
		}
		return fmt.Errorf("sqlite: creating book %s: %w", book.ISBN, err)
	}

	r.db.markDirty()
	return nil
}

func (r *BookRepo) GetByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	var b model.Book

	err := r.db.conn.QueryRowContext(ctx,
		`SELECT isbn, title, author, publisher, category, total_copies, available_copies, created_at
		 FROM books WHERE isbn = ?`,
		isbn,
	).Scan(
		&b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.Category,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("book", isbn)
		}
		return nil, fmt.Errorf("sqlite: getting book %s: %w", isbn, err)
	}

	return &b, nil
}

func (r *BookRepo) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT isbn, title, author, publisher, category, total_copies, available_copies, created_at
		 FROM books ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing books: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

// Search matches term case-insensitively against isbn, title, author and
// category.
func (r *BookRepo) Search(ctx context.Context, term string) ([]model.Book, error) {
	pattern := "%" + term + "%"
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT isbn, title, author, publisher, category, total_copies, available_copies, created_at
		 FROM books
		 WHERE isbn LIKE ? OR title LIKE ? OR author LIKE ? OR category LIKE ?
		 ORDER BY created_at DESC`,
		pattern, pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching books: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

// Update modifies a book's catalogue details and copy counts. The service
// layer has already validated 0 <= available <= total; the table's CHECK
// constraint backstops it.
func (r *BookRepo) Update(ctx context.Context, book *model.Book) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE books
		 SET title = ?, author = ?, publisher = ?, category = ?, total_copies = ?, available_copies = ?
		 WHERE isbn = ?`,
		book.Title,
		book.Author,
		book.Publisher,
		book.Category,
		book.TotalCopies,
		book.AvailableCopies,
		book.ISBN,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating book %s: %w", book.ISBN, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("book", book.ISBN)
	}

	r.db.markDirty()
	return nil
}

// Delete removes a book row. The active-loan guard lives in the service
// layer.
func (r *BookRepo) Delete(ctx context.Context, isbn string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM books WHERE isbn = ?`, isbn,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting book %s: %w", isbn, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("book", isbn)
	}

	r.db.markDirty()
	return nil
}

// Count, TotalCopies and AvailableCopies are the statistics aggregates.
// They are independent scans, recomputed on demand — the system keeps no
// running counters that could drift.

func (r *BookRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting books: %w", err)
	}
	return n, nil
}

func (r *BookRepo) TotalCopies(ctx context.Context) (int, error) {
	// COALESCE: SUM over an empty table is NULL, not 0
	var n int
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_copies), 0) FROM books`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: summing total copies: %w", err)
	}
	return n, nil
}

func (r *BookRepo) AvailableCopies(ctx context.Context) (int, error) {
	var n int
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(available_copies), 0) FROM books`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: summing available copies: %w", err)
	}
	return n, nil
}

func scanBooks(rows *sql.Rows) ([]model.Book, error) {
	books := make([]model.Book, 0, 16)
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(
			&b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.Category,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating books: %w", err)
	}
	return books, nil
}
