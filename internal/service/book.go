package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/cache"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository"
)

// BookInput is the payload for creating or updating a book.
type BookInput struct {
	ISBN        string `json:"isbn"        validate:"required,max=32"`
	Title       string `json:"title"       validate:"required,max=300"`
	Author      string `json:"author"      validate:"required,max=200"`
	Publisher   string `json:"publisher"   validate:"omitempty,max=200"`
	Category    string `json:"category"    validate:"omitempty,max=100"`
	TotalCopies int    `json:"totalCopies" validate:"required,min=1,max=10000"`
}

// BookService handles business logic for the book catalog.
type BookService struct {
	repo   repository.BookRepository
	loans  repository.TransactionRepository
	cache  *cache.Cache
	logger *slog.Logger
}

func NewBookService(repo repository.BookRepository, loans repository.TransactionRepository, c *cache.Cache, logger *slog.Logger) *BookService {
	return &BookService{
		repo:   repo,
		loans:  loans,
		cache:  c,
		logger: logger,
	}
}

// Create validates and saves a new book. All copies start on the shelf:
// available_copies = total_copies.
func (s *BookService) Create(ctx context.Context, p model.Principal, in BookInput) (*model.Book, error) {
	if !p.Role.CanManageRecords() {
		return nil, apperror.Forbidden("your role cannot add books")
	}

	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	book := &model.Book{
		ISBN:            in.ISBN,
		Title:           in.Title,
		Author:          in.Author,
		Publisher:       strings.TrimSpace(in.Publisher),
		Category:        strings.TrimSpace(in.Category),
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	}

	if err := s.repo.Create(ctx, book); err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.KeyBooks, cache.KeyStatistics)

	s.logger.Info("book created",
		slog.String("isbn", book.ISBN),
		slog.String("title", book.Title),
	)
	return book, nil
}

// Get retrieves a single book by ISBN.
func (s *BookService) Get(ctx context.Context, p model.Principal, isbn string) (*model.Book, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil, apperror.ValidationFailed("isbn", "ISBN is required")
	}
	return s.repo.GetByISBN(ctx, isbn)
}

// List returns the whole catalog, served from the cache when fresh.
func (s *BookService) List(ctx context.Context, p model.Principal) ([]model.Book, error) {
	if books, ok := cache.GetTyped[[]model.Book](s.cache, cache.KeyBooks); ok {
		return books, nil
	}

	books, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list books", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing books: %w", err)
	}

	s.cache.Set(cache.KeyBooks, books)
	return books, nil
}

// Search returns catalog entries matching the term.
func (s *BookService) Search(ctx context.Context, p model.Principal, term string) ([]model.Book, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx, p)
	}
	return s.repo.Search(ctx, term)
}

// Update modifies a book. The ISBN names the record and cannot change.
//
// COPY-COUNT ARITHMETIC:
// When total_copies changes, available_copies shifts by the same delta so
// the number of copies currently on loan stays constant. Shrinking
// total_copies below the number on loan is rejected — you can't un-buy a
// copy somebody is holding.
func (s *BookService) Update(ctx context.Context, p model.Principal, isbn string, in BookInput) (*model.Book, error) {
	if !p.Role.CanManageRecords() {
		return nil, apperror.Forbidden("your role cannot edit books")
	}

	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil, apperror.ValidationFailed("isbn", "ISBN is required")
	}
	in.ISBN = isbn
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	book, err := s.repo.GetByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}

	onLoan := book.TotalCopies - book.AvailableCopies
	if in.TotalCopies < onLoan {
		return nil, apperror.ValidationFailed("totalCopies", fmt.Sprintf(
			"%d cop(ies) are currently on loan; total copies cannot go below that", onLoan))
	}

	book.Title = in.Title
	book.Author = in.Author
	book.Publisher = strings.TrimSpace(in.Publisher)
	book.Category = strings.TrimSpace(in.Category)
	book.TotalCopies = in.TotalCopies
	book.AvailableCopies = in.TotalCopies - onLoan

	if err := s.repo.Update(ctx, book); err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.KeyBooks, cache.KeyStatistics)

	s.logger.Info("book updated", slog.String("isbn", isbn))
	return book, nil
}

// Delete removes a book from the catalog, unless copies are still out.
//
// Like the student guard, the active-loan check reads the repository
// directly — never the cache.
func (s *BookService) Delete(ctx context.Context, p model.Principal, isbn string) error {
	if !p.Role.CanManageRecords() {
		return apperror.Forbidden("your role cannot delete books")
	}

	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return apperror.ValidationFailed("isbn", "ISBN is required")
	}

	active, err := s.loans.ActiveByISBN(ctx, isbn)
	if err != nil {
		return fmt.Errorf("checking active loans: %w", err)
	}
	if len(active) > 0 {
		borrowers := make([]string, 0, len(active))
		for _, l := range active {
			borrowers = append(borrowers, l.StudentName)
		}
		return apperror.IntegrityBlocked(fmt.Sprintf(
			"%d cop(ies) of %s are still on loan to: %s — collect them before deleting",
			len(active), isbn, strings.Join(borrowers, ", ")))
	}

	if err := s.repo.Delete(ctx, isbn); err != nil {
		return err
	}

	s.cache.Invalidate(cache.KeyBooks, cache.KeyStatistics)

	s.logger.Info("book deleted", slog.String("isbn", isbn))
	return nil
}
