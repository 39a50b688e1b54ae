package model

import "time"

// Transaction status values. A loan starts as StatusIssued and flips to
// StatusReturned exactly once — there are no other states.
const (
	StatusIssued   = "issued"
	StatusReturned = "returned"
)

// LoanPeriod is how long a book may be borrowed. Fixed policy:
// due_date = issue_date + 14 days.
const LoanPeriod = 14 * 24 * time.Hour

// Transaction is a loan record: one student borrowing one book.
//
// LIFECYCLE:
// Created on issue with Status = issued and ReturnDate = nil. Mutated once
// on return (Status flips, ReturnDate set). Deletable only after return —
// active loans are the audit trail for every copy that is off the shelf.
//
// INVARIANT: at most one issued-status transaction may exist for a given
// (StudentID, ISBN) pair at any time. The issue workflow enforces this
// before writing (duplicate-loan guard).
//
// ReturnDate is a *time.Time rather than a time.Time because "not returned
// yet" is a real state we must represent — a nil pointer maps to SQL NULL
// and to JSON null, where a zero time.Time would serialize as year 1.
type Transaction struct {
	ID         string     `json:"id"`
	StudentID  string     `json:"studentId"`
	ISBN       string     `json:"isbn"`
	IssueDate  time.Time  `json:"issueDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	Status     string     `json:"status"`
}

// Overdue reports whether the loan is still out past its due date.
func (t *Transaction) Overdue(now time.Time) bool {
	return t.Status == StatusIssued && now.After(t.DueDate)
}

// Loan is the joined read model used by list, search and export views:
// a Transaction enriched with the borrower's name and the book's title.
// The joins are LEFT joins — if the student or book row was deleted after
// the loan was recorded, the names come back empty rather than dropping
// the loan from the view (the loan record itself is authoritative).
type Loan struct {
	Transaction
	StudentName string `json:"studentName,omitempty"`
	BookTitle   string `json:"bookTitle,omitempty"`
	BookAuthor  string `json:"bookAuthor,omitempty"`
}

// Statistics is the derived dashboard view. It is recomputed from aggregate
// queries on every cache miss, never maintained as running counters — a
// counter could drift after a missed invalidation or a manual database edit,
// a recomputation cannot.
type Statistics struct {
	TotalStudents   int `json:"totalStudents"`
	TotalBooks      int `json:"totalBooks"`
	TotalCopies     int `json:"totalCopies"`
	AvailableCopies int `json:"availableCopies"`
	IssuedBooks     int `json:"issuedBooks"`
}
