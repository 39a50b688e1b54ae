package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors — the kinds of failure the core can produce.
// Services return these wrapped in an *AppError; the HTTP layer maps each
// kind to a status code with errors.Is. Business-rule violations are values
// to branch on, not exceptions-as-control-flow.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrConflict         = errors.New("conflict")
	ErrNoCopies         = errors.New("no copies available")
	ErrIntegrityBlocked = errors.New("blocked by active loans")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Message string // Human-readable, names the offending entity
	Field   string // Optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists with id %s", resource, id),
	}
}

// DuplicateLoan is returned when a student tries to borrow a book they
// already have out. At most one issued loan may exist per (student, book).
func DuplicateLoan(studentID, isbn string) *AppError {
	return &AppError{
		Err: ErrConflict,
		Message: fmt.Sprintf(
			"student %s already has book %s issued and hasn't returned it yet",
			studentID, isbn),
	}
}

// NoCopiesAvailable is returned when every copy of the book is out on loan.
func NoCopiesAvailable(title string) *AppError {
	return &AppError{
		Err:     ErrNoCopies,
		Message: fmt.Sprintf("no copies of %q are available", title),
	}
}

// AlreadyReturned is returned on a second return of the same loan.
// The first return wins; the copy counter is never incremented twice.
func AlreadyReturned(transactionID string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("transaction %s has already been returned", transactionID),
	}
}

// IntegrityBlocked is returned by the deletion guards. The message must
// enumerate the blocking loans so the librarian knows what to return first.
func IntegrityBlocked(message string) *AppError {
	return &AppError{
		Err:     ErrIntegrityBlocked,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller's role lacks the
// capability for this operation. HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for failed or missing authentication.
// HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
