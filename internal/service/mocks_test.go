package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/cache"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// WHAT IS A MOCK?
// A mock is a fake implementation of an interface used in tests.
// Instead of talking to a real database, it stores data in memory.
//
// WHY MOCK?
// 1. SPEED: No database setup, no disk I/O, tests run in microseconds
// 2. ISOLATION: Tests only test the service logic, not the database
// 3. CONTROL: You can simulate states (book vanished mid-loan) that would
//    be awkward to set up through the real persistence layer
//
// The loan mock shares the book mock's map so issue/return move the same
// copy counters the service later reads — mirroring what the real
// repository does inside its database transaction.

type mockStudentRepo struct {
	students map[string]*model.Student
	// listCalls counts repository reads, so tests can prove a second List
	// was served from the cache without touching the repo.
	listCalls int
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) Create(_ context.Context, s *model.Student) error {
	if _, ok := m.students[s.StudentID]; ok {
		return apperror.Conflict("student", s.StudentID)
	}
	s.CreatedAt = time.Now()
	stored := *s
	m.students[s.StudentID] = &stored
	return nil
}

func (m *mockStudentRepo) GetByStudentID(_ context.Context, id string) (*model.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, apperror.NotFound("student", id)
	}
	result := *s
	return &result, nil
}

func (m *mockStudentRepo) List(_ context.Context) ([]model.Student, error) {
	m.listCalls++
	result := make([]model.Student, 0, len(m.students))
	for _, s := range m.students {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (m *mockStudentRepo) Search(_ context.Context, term string) ([]model.Student, error) {
	term = strings.ToLower(term)
	var result []model.Student
	for _, s := range m.students {
		if strings.Contains(strings.ToLower(s.Name), term) ||
			strings.Contains(strings.ToLower(s.StudentID), term) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockStudentRepo) Update(_ context.Context, s *model.Student) error {
	if _, ok := m.students[s.StudentID]; !ok {
		return apperror.NotFound("student", s.StudentID)
	}
	stored := *s
	m.students[s.StudentID] = &stored
	return nil
}

func (m *mockStudentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return apperror.NotFound("student", id)
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) Count(_ context.Context) (int, error) {
	return len(m.students), nil
}

type mockBookRepo struct {
	books     map[string]*model.Book
	listCalls int
}

func newMockBookRepo() *mockBookRepo {
	return &mockBookRepo{books: make(map[string]*model.Book)}
}

func (m *mockBookRepo) Create(_ context.Context, b *model.Book) error {
	if _, ok := m.books[b.ISBN]; ok {
		return apperror.Conflict("book", b.ISBN)
	}
	b.CreatedAt = time.Now()
	stored := *b
	m.books[b.ISBN] = &stored
	return nil
}

func (m *mockBookRepo) GetByISBN(_ context.Context, isbn string) (*model.Book, error) {
	b, ok := m.books[isbn]
	if !ok {
		return nil, apperror.NotFound("book", isbn)
	}
	result := *b
	return &result, nil
}

func (m *mockBookRepo) List(_ context.Context) ([]model.Book, error) {
	m.listCalls++
	result := make([]model.Book, 0, len(m.books))
	for _, b := range m.books {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ISBN < result[j].ISBN })
	return result, nil
}

func (m *mockBookRepo) Search(_ context.Context, term string) ([]model.Book, error) {
	term = strings.ToLower(term)
	var result []model.Book
	for _, b := range m.books {
		if strings.Contains(strings.ToLower(b.Title), term) ||
			strings.Contains(strings.ToLower(b.ISBN), term) {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (m *mockBookRepo) Update(_ context.Context, b *model.Book) error {
	if _, ok := m.books[b.ISBN]; !ok {
		return apperror.NotFound("book", b.ISBN)
	}
	stored := *b
	m.books[b.ISBN] = &stored
	return nil
}

func (m *mockBookRepo) Delete(_ context.Context, isbn string) error {
	if _, ok := m.books[isbn]; !ok {
		return apperror.NotFound("book", isbn)
	}
	delete(m.books, isbn)
	return nil
}

func (m *mockBookRepo) Count(_ context.Context) (int, error) {
	return len(m.books), nil
}

func (m *mockBookRepo) TotalCopies(_ context.Context) (int, error) {
	n := 0
	for _, b := range m.books {
		n += b.TotalCopies
	}
	return n, nil
}

func (m *mockBookRepo) AvailableCopies(_ context.Context) (int, error) {
	n := 0
	for _, b := range m.books {
		n += b.AvailableCopies
	}
	return n, nil
}

// mockLoanRepo shares the student and book mocks so issue/return move the
// same copy counts the other services read, and the Active* queries can
// join names the way the real LEFT JOIN does.
type mockLoanRepo struct {
	loans    map[string]*model.Transaction
	students *mockStudentRepo
	books    *mockBookRepo
	nextID   int
}

func newMockLoanRepo(students *mockStudentRepo, books *mockBookRepo) *mockLoanRepo {
	return &mockLoanRepo{
		loans:    make(map[string]*model.Transaction),
		students: students,
		books:    books,
	}
}

func (m *mockLoanRepo) Issue(_ context.Context, t *model.Transaction) error {
	b, ok := m.books.books[t.ISBN]
	if !ok || b.AvailableCopies <= 0 {
		return apperror.NoCopiesAvailable(t.ISBN)
	}
	b.AvailableCopies--

	m.nextID++
	t.ID = fmt.Sprintf("loan-%d", m.nextID)
	t.Status = model.StatusIssued
	stored := *t
	m.loans[t.ID] = &stored
	return nil
}

func (m *mockLoanRepo) Return(_ context.Context, id string, returnedAt time.Time) (*model.Transaction, error) {
	t, ok := m.loans[id]
	if !ok {
		return nil, apperror.NotFound("transaction", id)
	}
	if t.Status == model.StatusReturned {
		return nil, apperror.AlreadyReturned(id)
	}
	t.Status = model.StatusReturned
	t.ReturnDate = &returnedAt
	if b, ok := m.books.books[t.ISBN]; ok && b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}
	result := *t
	return &result, nil
}

func (m *mockLoanRepo) GetByID(_ context.Context, id string) (*model.Transaction, error) {
	t, ok := m.loans[id]
	if !ok {
		return nil, apperror.NotFound("transaction", id)
	}
	result := *t
	return &result, nil
}

func (m *mockLoanRepo) all() []model.Loan {
	result := make([]model.Loan, 0, len(m.loans))
	for _, t := range m.loans {
		l := model.Loan{Transaction: *t}
		if s, ok := m.students.students[t.StudentID]; ok {
			l.StudentName = s.Name
		}
		if b, ok := m.books.books[t.ISBN]; ok {
			l.BookTitle = b.Title
			l.BookAuthor = b.Author
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockLoanRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Loan, error) {
	result := m.all()
	if opts.Offset >= len(result) {
		return []model.Loan{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockLoanRepo) Search(_ context.Context, term string) ([]model.Loan, error) {
	term = strings.ToLower(term)
	var result []model.Loan
	for _, l := range m.all() {
		if strings.Contains(strings.ToLower(l.StudentID), term) ||
			strings.Contains(strings.ToLower(l.ISBN), term) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLoanRepo) Overdue(_ context.Context, now time.Time) ([]model.Loan, error) {
	var result []model.Loan
	for _, l := range m.all() {
		if l.Status == model.StatusIssued && l.DueDate.Before(now) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLoanRepo) ActiveExists(_ context.Context, studentID, isbn string) (bool, error) {
	for _, t := range m.loans {
		if t.StudentID == studentID && t.ISBN == isbn && t.Status == model.StatusIssued {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLoanRepo) ActiveByStudent(_ context.Context, studentID string) ([]model.Loan, error) {
	var result []model.Loan
	for _, l := range m.all() {
		if l.StudentID == studentID && l.Status == model.StatusIssued {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLoanRepo) ActiveByISBN(_ context.Context, isbn string) ([]model.Loan, error) {
	var result []model.Loan
	for _, l := range m.all() {
		if l.ISBN == isbn && l.Status == model.StatusIssued {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLoanRepo) CountIssued(_ context.Context) (int, error) {
	n := 0
	for _, t := range m.loans {
		if t.Status == model.StatusIssued {
			n++
		}
	}
	return n, nil
}

func (m *mockLoanRepo) Delete(_ context.Context, id string) error {
	t, ok := m.loans[id]
	if !ok {
		return apperror.NotFound("transaction", id)
	}
	if t.Status == model.StatusIssued {
		return apperror.IntegrityBlocked("transaction " + id + " is still active")
	}
	delete(m.loans, id)
	return nil
}

// Compile-time checks that the mocks satisfy the repository interfaces.
var (
	_ repository.StudentRepository     = (*mockStudentRepo)(nil)
	_ repository.BookRepository        = (*mockBookRepo)(nil)
	_ repository.TransactionRepository = (*mockLoanRepo)(nil)
)

// =========================================================================
// SHARED TEST FIXTURE
// =========================================================================

// serviceFixture wires every core service around one shared mock store and
// one shared cache, the same shape the real server assembles.
type serviceFixture struct {
	students *mockStudentRepo
	books    *mockBookRepo
	loans    *mockLoanRepo
	cache    *cache.Cache

	studentSvc *StudentService
	bookSvc    *BookService
	loanSvc    *LoanService
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	students := newMockStudentRepo()
	books := newMockBookRepo()
	loans := newMockLoanRepo(students, books)
	c := cache.New(cache.Defaults())
	t.Cleanup(c.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return &serviceFixture{
		students:   students,
		books:      books,
		loans:      loans,
		cache:      c,
		studentSvc: NewStudentService(students, loans, c, logger),
		bookSvc:    NewBookService(books, loans, c, logger),
		loanSvc:    NewLoanService(loans, students, books, c, logger),
	}
}

// Principals for the three roles, used across the test files.
var (
	asAdmin     = model.Principal{UserID: "u-admin", Role: model.RoleAdmin}
	asLibrarian = model.Principal{UserID: "u-lib", Role: model.RoleLibrarian}
	asViewer    = model.Principal{UserID: "u-view", Role: model.RoleViewer}
)

// addStudent and addBook bypass the services, seeding the mocks directly.
func (f *serviceFixture) addStudent(t *testing.T, id, name string) {
	t.Helper()
	err := f.students.Create(context.Background(), &model.Student{StudentID: id, Name: name})
	if err != nil {
		t.Fatalf("addStudent(%s): %v", id, err)
	}
}

func (f *serviceFixture) addBook(t *testing.T, isbn, title string, copies int) {
	t.Helper()
	err := f.books.Create(context.Background(), &model.Book{
		ISBN: isbn, Title: title, Author: "Author",
		TotalCopies: copies, AvailableCopies: copies,
	})
	if err != nil {
		t.Fatalf("addBook(%s): %v", isbn, err)
	}
}

func (f *serviceFixture) available(t *testing.T, isbn string) int {
	t.Helper()
	b, err := f.books.GetByISBN(context.Background(), isbn)
	if err != nil {
		t.Fatalf("available(%s): %v", isbn, err)
	}
	return b.AvailableCopies
}
