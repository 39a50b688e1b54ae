package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/cache"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository"
)

// LoanService owns the loan lifecycle: issue → issued → returned.
//
// This is the heart of the system. The copy-count invariant
// (0 ≤ available_copies ≤ total_copies, moved exactly once per issue and
// once per return) is protected in two layers:
//   - preconditions here, checked in a fixed order with clear errors
//   - atomic effects in the repository, where insert+decrement (and
//     flip+increment) run inside one database transaction
type LoanService struct {
	loans    repository.TransactionRepository
	students repository.StudentRepository
	books    repository.BookRepository
	cache    *cache.Cache
	logger   *slog.Logger
	now      func() time.Time
}

func NewLoanService(
	loans repository.TransactionRepository,
	students repository.StudentRepository,
	books repository.BookRepository,
	c *cache.Cache,
	logger *slog.Logger,
) *LoanService {
	return &LoanService{
		loans:    loans,
		students: students,
		books:    books,
		cache:    c,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue lends one copy of a book to a student.
//
// PRECONDITIONS, checked in order, each with its own error:
// 1. The student doesn't already hold this title  → DuplicateLoan
// 2. The book exists                              → NotFound
// 3. At least one copy is on the shelf            → NoCopiesAvailable
// 4. The student exists                           → NotFound
//
// The copies>0 check here gives the caller a friendly early failure, but it
// is NOT the real guard — between this read and the write another request
// could take the last copy. The repository re-checks inside its database
// transaction, so the count can never go negative even under races.
func (s *LoanService) Issue(ctx context.Context, p model.Principal, studentID, isbn string) (*model.Transaction, error) {
	if !p.Role.CanManageRecords() {
		return nil, apperror.Forbidden("your role cannot issue books")
	}

	studentID = strings.TrimSpace(studentID)
	isbn = strings.TrimSpace(isbn)
	if studentID == "" {
		return nil, apperror.ValidationFailed("studentId", "student ID is required")
	}
	if isbn == "" {
		return nil, apperror.ValidationFailed("isbn", "ISBN is required")
	}

	exists, err := s.loans.ActiveExists(ctx, studentID, isbn)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate loan: %w", err)
	}
	if exists {
		return nil, apperror.DuplicateLoan(studentID, isbn)
	}

	book, err := s.books.GetByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if book.AvailableCopies <= 0 {
		return nil, apperror.NoCopiesAvailable(book.Title)
	}

	if _, err := s.students.GetByStudentID(ctx, studentID); err != nil {
		return nil, err
	}

	now := s.now()
	tx := &model.Transaction{
		StudentID: studentID,
		ISBN:      isbn,
		IssueDate: now,
		DueDate:   now.Add(model.LoanPeriod),
	}
	if err := s.loans.Issue(ctx, tx); err != nil {
		return nil, err
	}

	// An issue changes the loan list, the book's available count, and the
	// issued-books figure on the dashboard. Students are untouched.
	s.cache.Invalidate(cache.KeyTransactions, cache.KeyBooks, cache.KeyStatistics)

	s.logger.Info("book issued",
		slog.String("transactionId", tx.ID),
		slog.String("studentId", studentID),
		slog.String("isbn", isbn),
		slog.Time("dueDate", tx.DueDate),
	)
	return tx, nil
}

// Return accepts a borrowed copy back. The repository handles the
// not-found and already-returned guards atomically with the increment.
func (s *LoanService) Return(ctx context.Context, p model.Principal, id string) (*model.Transaction, error) {
	if !p.Role.CanManageRecords() {
		return nil, apperror.Forbidden("your role cannot return books")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "transaction ID is required")
	}

	tx, err := s.loans.Return(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.KeyTransactions, cache.KeyBooks, cache.KeyStatistics)

	s.logger.Info("book returned",
		slog.String("transactionId", tx.ID),
		slog.String("studentId", tx.StudentID),
		slog.String("isbn", tx.ISBN),
	)
	return tx, nil
}

// List returns loans with student names and book titles joined in.
//
// Only the default view (no explicit pagination) is cached — the cache has
// a single slot per key, and caching page 7 under the same key as page 1
// would serve the wrong page to the next caller.
func (s *LoanService) List(ctx context.Context, p model.Principal, limit, offset int) ([]model.Loan, error) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	defaultView := limit == 0 && offset == 0
	if defaultView {
		if loans, ok := cache.GetTyped[[]model.Loan](s.cache, cache.KeyTransactions); ok {
			return loans, nil
		}
	}

	loans, err := s.loans.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list loans", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing loans: %w", err)
	}

	if defaultView {
		s.cache.Set(cache.KeyTransactions, loans)
	}
	return loans, nil
}

// Search returns loans matching the term against student IDs and names,
// book titles and ISBNs.
func (s *LoanService) Search(ctx context.Context, p model.Principal, term string) ([]model.Loan, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx, p, 0, 0)
	}
	return s.loans.Search(ctx, term)
}

// Overdue returns issued loans whose due date has passed.
func (s *LoanService) Overdue(ctx context.Context, p model.Principal) ([]model.Loan, error) {
	return s.loans.Overdue(ctx, s.now())
}

// Delete removes a returned loan record from the history. Active loans
// cannot be deleted — they are the record of copies that are off the shelf.
func (s *LoanService) Delete(ctx context.Context, p model.Principal, id string) error {
	if !p.Role.CanManageRecords() {
		return apperror.Forbidden("your role cannot delete loan records")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "transaction ID is required")
	}

	if err := s.loans.Delete(ctx, id); err != nil {
		return err
	}

	// Deleting history doesn't move any copy counts.
	s.cache.Invalidate(cache.KeyTransactions)

	s.logger.Info("loan record deleted", slog.String("transactionId", id))
	return nil
}

// Statistics returns the dashboard aggregates.
//
// RECOMPUTE, DON'T COUNT:
// Each figure is an independent aggregate query, recomputed on every cache
// miss. A running counter would be cheaper per read but could drift after a
// missed invalidation or a manual database edit; recomputation is correct
// by construction.
func (s *LoanService) Statistics(ctx context.Context, p model.Principal) (*model.Statistics, error) {
	if stats, ok := cache.GetTyped[*model.Statistics](s.cache, cache.KeyStatistics); ok {
		return stats, nil
	}

	stats := &model.Statistics{}
	var err error

	if stats.TotalStudents, err = s.students.Count(ctx); err != nil {
		return nil, fmt.Errorf("counting students: %w", err)
	}
	if stats.TotalBooks, err = s.books.Count(ctx); err != nil {
		return nil, fmt.Errorf("counting books: %w", err)
	}
	if stats.TotalCopies, err = s.books.TotalCopies(ctx); err != nil {
		return nil, fmt.Errorf("summing total copies: %w", err)
	}
	if stats.AvailableCopies, err = s.books.AvailableCopies(ctx); err != nil {
		return nil, fmt.Errorf("summing available copies: %w", err)
	}
	if stats.IssuedBooks, err = s.loans.CountIssued(ctx); err != nil {
		return nil, fmt.Errorf("counting issued loans: %w", err)
	}

	s.cache.Set(cache.KeyStatistics, stats)
	return stats, nil
}
