// Package repository defines the persistence interfaces the service layer
// depends on. Services program against these interfaces, never against the
// concrete SQLite implementation — tests inject in-memory mocks, and the
// backing store can change without touching business logic.
package repository

import (
	"context"
	"time"

	"github.com/nafis/library-server/internal/model"
)

// ListOptions carries limit/offset pagination for list queries.
// Zero values mean "use the repository's defaults".
type ListOptions struct {
	Limit  int
	Offset int
}

type StudentRepository interface {
	Create(ctx context.Context, student *model.Student) error
	GetByStudentID(ctx context.Context, studentID string) (*model.Student, error)
	List(ctx context.Context) ([]model.Student, error)
	// Search matches the term case-insensitively against student_id, name,
	// email and department.
	Search(ctx context.Context, term string) ([]model.Student, error)
	Update(ctx context.Context, student *model.Student) error
	Delete(ctx context.Context, studentID string) error
	Count(ctx context.Context) (int, error)
}

type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	GetByISBN(ctx context.Context, isbn string) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	// Search matches the term case-insensitively against isbn, title,
	// author and category.
	Search(ctx context.Context, term string) ([]model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, isbn string) error
	Count(ctx context.Context) (int, error)
	TotalCopies(ctx context.Context) (int, error)
	AvailableCopies(ctx context.Context) (int, error)
}

// TransactionRepository owns loan records AND the paired copy-count writes.
//
// Issue and Return are the only places available_copies is ever touched.
// Both run their two statements inside a single database transaction, so a
// reader can never observe a loan without its decrement (or a return without
// its increment). Exposing a raw decrement here would let callers break the
// copy-count invariant — so there isn't one.
type TransactionRepository interface {
	// Issue inserts t with status=issued and decrements the book's
	// available_copies by exactly one, atomically. Returns ErrNoCopies if
	// the count is already zero (the guard re-runs inside the transaction,
	// so two interleaved issues can't both take the last copy).
	Issue(ctx context.Context, t *model.Transaction) error

	// Return flips the loan to returned at returnedAt and increments the
	// book's available_copies by exactly one, atomically. The increment is
	// capped at total_copies and skipped entirely if the book row no longer
	// exists — the loan record is authoritative. Returns ErrNotFound for an
	// unknown id and ErrConflict (already returned) for a second return.
	Return(ctx context.Context, id string, returnedAt time.Time) (*model.Transaction, error)

	GetByID(ctx context.Context, id string) (*model.Transaction, error)
	List(ctx context.Context, opts ListOptions) ([]model.Loan, error)
	// Search matches the term case-insensitively against the student id,
	// the joined student name, the joined book title and the isbn.
	Search(ctx context.Context, term string) ([]model.Loan, error)
	Overdue(ctx context.Context, now time.Time) ([]model.Loan, error)

	// ActiveExists reports whether an issued-status loan exists for the
	// (studentID, isbn) pair — the duplicate-loan guard.
	ActiveExists(ctx context.Context, studentID, isbn string) (bool, error)
	// ActiveByStudent lists a student's unreturned loans (with book titles),
	// used by the student deletion guard.
	ActiveByStudent(ctx context.Context, studentID string) ([]model.Loan, error)
	// ActiveByISBN lists a book's unreturned loans (with borrower names),
	// used by the book deletion guard.
	ActiveByISBN(ctx context.Context, isbn string) ([]model.Loan, error)

	CountIssued(ctx context.Context) (int, error)
	// Delete removes a returned loan record. Active loans are the audit
	// trail for copies that are off the shelf and cannot be deleted.
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// GetByUsername returns the user only if the account is active.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
