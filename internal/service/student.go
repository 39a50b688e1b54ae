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

// StudentInput is the payload for creating or updating a student.
//
// The validate tags are enforced by checkStruct before anything touches the
// database. StudentID and Name are the only hard requirements — the original
// registration form treats everything else as optional.
type StudentInput struct {
	StudentID  string `json:"studentId"  validate:"required,max=64"`
	Name       string `json:"name"       validate:"required,max=200"`
	Email      string `json:"email"      validate:"omitempty,email"`
	Phone      string `json:"phone"      validate:"omitempty,max=32"`
	Department string `json:"department" validate:"omitempty,max=100"`
	Year       string `json:"year"       validate:"omitempty,max=20"`
}

// StudentService handles business logic for student records.
type StudentService struct {
	repo   repository.StudentRepository
	loans  repository.TransactionRepository
	cache  *cache.Cache
	logger *slog.Logger
}

func NewStudentService(repo repository.StudentRepository, loans repository.TransactionRepository, c *cache.Cache, logger *slog.Logger) *StudentService {
	return &StudentService{
		repo:   repo,
		loans:  loans,
		cache:  c,
		logger: logger,
	}
}

// Create validates and saves a new student record.
// Requires a role that can manage records (LIBRARIAN or ADMIN).
func (s *StudentService) Create(ctx context.Context, p model.Principal, in StudentInput) (*model.Student, error) {
	if !p.Role.CanManageRecords() {
		return nil, apperror.Forbidden("your role cannot add students")
	}

	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	student := &model.Student{
		StudentID:  in.StudentID,
		Name:       in.Name,
		Email:      strings.TrimSpace(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		Department: strings.TrimSpace(in.Department),
		Year:       strings.TrimSpace(in.Year),
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, err
	}

	// A new student changes the student list and the totals on the dashboard.
	s.cache.Invalidate(cache.KeyStudents, cache.KeyStatistics)

	s.logger.Info("student created",
		slog.String("studentId", student.StudentID),
		slog.String("name", student.Name),
	)
	return student, nil
}

// Get retrieves a single student by their external ID.
func (s *StudentService) Get(ctx context.Context, p model.Principal, studentID string) (*model.Student, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, apperror.ValidationFailed("studentId", "student ID is required")
	}
	return s.repo.GetByStudentID(ctx, studentID)
}

// List returns all students, served from the cache when fresh.
//
// CACHE-ASIDE PATTERN:
// 1. Check the cache — on a hit, return the cached slice
// 2. On a miss, load from the repository
// 3. Store the result for the next caller
// The cache is advisory: a miss just costs one query.
func (s *StudentService) List(ctx context.Context, p model.Principal) ([]model.Student, error) {
	if students, ok := cache.GetTyped[[]model.Student](s.cache, cache.KeyStudents); ok {
		return students, nil
	}

	students, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list students", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing students: %w", err)
	}

	s.cache.Set(cache.KeyStudents, students)
	return students, nil
}

// Search returns students matching the term. Search results are never
// cached — terms are too varied for a single-key cache to help.
func (s *StudentService) Search(ctx context.Context, p model.Principal, term string) ([]model.Student, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx, p)
	}
	return s.repo.Search(ctx, term)
}

// Update modifies an existing student. The StudentID names the record and
// cannot be changed; all other fields are replaced with the input values.
func (s *StudentService) Update(ctx context.Context, p model.Principal, studentID string, in StudentInput) (*model.Student, error) {
	if !p.Role.CanManageRecords() {
		return nil, apperror.Forbidden("your role cannot edit students")
	}

	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, apperror.ValidationFailed("studentId", "student ID is required")
	}
	in.StudentID = studentID
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	// Fetch-then-update: confirms the record exists and gives us the
	// original CreatedAt to hand back to the caller.
	student, err := s.repo.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	student.Name = in.Name
	student.Email = strings.TrimSpace(in.Email)
	student.Phone = strings.TrimSpace(in.Phone)
	student.Department = strings.TrimSpace(in.Department)
	student.Year = strings.TrimSpace(in.Year)

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.KeyStudents, cache.KeyStatistics)

	s.logger.Info("student updated", slog.String("studentId", studentID))
	return student, nil
}

// Delete removes a student record, unless they still hold unreturned books.
//
// DELETION GUARD:
// The active-loan check always goes straight to the repository, never
// through the cache — a stale "no active loans" answer here would orphan
// loan records that still have copies off the shelf.
func (s *StudentService) Delete(ctx context.Context, p model.Principal, studentID string) error {
	if !p.Role.CanManageRecords() {
		return apperror.Forbidden("your role cannot delete students")
	}

	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return apperror.ValidationFailed("studentId", "student ID is required")
	}

	active, err := s.loans.ActiveByStudent(ctx, studentID)
	if err != nil {
		return fmt.Errorf("checking active loans: %w", err)
	}
	if len(active) > 0 {
		titles := make([]string, 0, len(active))
		for _, l := range active {
			titles = append(titles, l.BookTitle)
		}
		return apperror.IntegrityBlocked(fmt.Sprintf(
			"student %s still holds %d book(s): %s — return them before deleting",
			studentID, len(active), strings.Join(titles, ", ")))
	}

	if err := s.repo.Delete(ctx, studentID); err != nil {
		return err
	}

	s.cache.Invalidate(cache.KeyStudents, cache.KeyStatistics)

	s.logger.Info("student deleted", slog.String("studentId", studentID))
	return nil
}

// Loans lists a student's unreturned loans, with book titles joined in.
func (s *StudentService) Loans(ctx context.Context, p model.Principal, studentID string) ([]model.Loan, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, apperror.ValidationFailed("studentId", "student ID is required")
	}
	return s.loans.ActiveByStudent(ctx, studentID)
}
