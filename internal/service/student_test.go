package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nafis/library-server/internal/apperror"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestStudentCreate_Valid(t *testing.T) {
	f := newFixture(t)

	s, err := f.studentSvc.Create(context.Background(), asLibrarian, StudentInput{
		StudentID: "  CSE-001  ",
		Name:      "Alice Rahman",
		Email:     "alice@example.edu",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.StudentID != "CSE-001" {
		t.Errorf("StudentID = %q, want trimmed %q", s.StudentID, "CSE-001")
	}
}

func TestStudentCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   StudentInput
	}{
		{"missing student id", StudentInput{Name: "Alice"}},
		{"missing name", StudentInput{StudentID: "S1"}},
		{"whitespace-only name", StudentInput{StudentID: "S1", Name: "   "}},
		{"bad email", StudentInput{StudentID: "S1", Name: "Alice", Email: "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.studentSvc.Create(ctx, asLibrarian, tt.in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestStudentCreate_ViewerForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.studentSvc.Create(context.Background(), asViewer, StudentInput{
		StudentID: "S1", Name: "Alice",
	})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestStudentCreate_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "S1", "Alice")

	_, err := f.studentSvc.Create(context.Background(), asAdmin, StudentInput{
		StudentID: "S1", Name: "Impostor",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LIST CACHING
// =========================================================================

func TestStudentList_SecondReadServedFromCache(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "S1", "Alice")
	ctx := context.Background()

	if _, err := f.studentSvc.List(ctx, asViewer); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	before := f.students.listCalls

	if _, err := f.studentSvc.List(ctx, asViewer); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if f.students.listCalls != before {
		t.Errorf("second List() hit the repository; want cache hit within TTL")
	}
}

func TestStudentCreate_InvalidatesListCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.studentSvc.List(ctx, asViewer); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if _, err := f.studentSvc.Create(ctx, asLibrarian, StudentInput{
		StudentID: "S1", Name: "Alice",
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	students, err := f.studentSvc.List(ctx, asViewer)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(students) != 1 {
		t.Errorf("len(List()) = %d, want 1 (stale empty list served)", len(students))
	}
}

// =========================================================================
// DELETE GUARD (Scenario: student with an active loan)
// =========================================================================

func TestStudentDelete_BlockedByActiveLoan(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "S1", "Alice")
	f.addBook(t, "B1", "Distributed Systems", 1)
	ctx := context.Background()

	tx, err := f.loanSvc.Issue(ctx, asLibrarian, "S1", "B1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	err = f.studentSvc.Delete(ctx, asLibrarian, "S1")
	if !errors.Is(err, apperror.ErrIntegrityBlocked) {
		t.Fatalf("Delete() error = %v, want ErrIntegrityBlocked", err)
	}
	// The message names the book so staff know what to collect
	if !strings.Contains(err.Error(), "Distributed Systems") {
		t.Errorf("error %q should name the blocking book title", err)
	}

	// After the return, deletion goes through
	if _, err := f.loanSvc.Return(ctx, asLibrarian, tx.ID); err != nil {
		t.Fatalf("Return() error = %v", err)
	}
	if err := f.studentSvc.Delete(ctx, asLibrarian, "S1"); err != nil {
		t.Errorf("Delete() after return error = %v, want success", err)
	}
}

func TestStudentDelete_ViewerForbidden(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "S1", "Alice")

	err := f.studentSvc.Delete(context.Background(), asViewer, "S1")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestStudentUpdate(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "S1", "Alice")
	ctx := context.Background()

	s, err := f.studentSvc.Update(ctx, asAdmin, "S1", StudentInput{
		Name: "Alice Rahman", Department: "CSE",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if s.Name != "Alice Rahman" || s.Department != "CSE" {
		t.Errorf("updated student = %+v, want new name and department", s)
	}

	_, err = f.studentSvc.Update(ctx, asAdmin, "missing", StudentInput{Name: "Nobody"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SEARCH
// =========================================================================

func TestStudentSearch_EmptyTermListsAll(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "S1", "Alice")
	f.addStudent(t, "S2", "Bob")
	ctx := context.Background()

	got, err := f.studentSvc.Search(ctx, asViewer, "   ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(Search(blank)) = %d, want all 2", len(got))
	}

	got, err = f.studentSvc.Search(ctx, asViewer, "alice")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].StudentID != "S1" {
		t.Errorf("Search(alice) = %v, want only S1", got)
	}
}
