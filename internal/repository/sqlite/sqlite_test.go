package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/nafis/library-server/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only for the duration of
// the test — fast, isolated, destroyed on close. Flush delay 0 disables the
// WAL checkpointer (nothing to flush in memory).
//
// t.Helper() makes failures report at the caller's line, and t.Cleanup
// closes the database even when a subtest fails.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:", 0)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestStudent(t *testing.T, db *DB, studentID, name string) *model.Student {
	t.Helper()
	s := &model.Student{
		StudentID: studentID,
		Name:      name,
		Email:     studentID + "@university.edu",
	}
	if err := NewStudentRepo(db).Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create test student: %v", err)
	}
	return s
}

func createTestBook(t *testing.T, db *DB, isbn, title string, copies int) *model.Book {
	t.Helper()
	b := &model.Book{
		ISBN:            isbn,
		Title:           title,
		Author:          "Test Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	if err := NewBookRepo(db).Create(context.Background(), b); err != nil {
		t.Fatalf("failed to create test book: %v", err)
	}
	return b
}

func issueTestLoan(t *testing.T, db *DB, studentID, isbn string) *model.Transaction {
	t.Helper()
	now := time.Now()
	tx := &model.Transaction{
		StudentID: studentID,
		ISBN:      isbn,
		IssueDate: now,
		DueDate:   now.Add(model.LoanPeriod),
	}
	if err := NewTransactionRepo(db).Issue(context.Background(), tx); err != nil {
		t.Fatalf("failed to issue test loan: %v", err)
	}
	return tx
}

func availableCopies(t *testing.T, db *DB, isbn string) int {
	t.Helper()
	b, err := NewBookRepo(db).GetByISBN(context.Background(), isbn)
	if err != nil {
		t.Fatalf("failed to read book %s: %v", isbn, err)
	}
	return b.AvailableCopies
}
