package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository"
	"github.com/rs/xid"
)

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

// List pagination bounds. No cursor support, so the default limit bounds
// payload size; search is capped harder because a broad term can match the
// whole table.
const (
	DefaultLoanLimit = 200
	MaxLoanLimit     = 1000
	searchLimit      = 500
)

// TransactionRepo implements repository.TransactionRepository.
//
// THE ATOMICITY STORY:
// Issuing a loan is two writes — insert the transaction row, decrement the
// book's available_copies — and a failure (or a concurrent reader) between
// them would leave the system claiming a book is out without having taken a
// copy off the shelf. Both writes therefore run inside one sql.Tx: either
// both land or neither does. Same for Return. This is the one place in the
// system where BEGIN/COMMIT genuinely earns its keep.
type TransactionRepo struct {
	db *DB
}

func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Issue atomically records a loan and takes one copy off the shelf.
//
// The UPDATE re-checks `available_copies > 0` inside the transaction. The
// service layer has already screened for availability, but between its read
// and this write another issue may have taken the last copy — the WHERE
// clause makes the decrement impossible rather than merely unlikely to go
// negative. RowsAffected == 0 means we lost that race: roll back the insert
// and report no copies.
func (r *TransactionRepo) Issue(ctx context.Context, t *model.Transaction) error {
	t.ID = xid.New().String()
	t.Status = model.StatusIssued

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning issue transaction: %w", err)
	}
	// Rollback after a successful Commit is a harmless no-op; this defer
	// only matters on the error paths.
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, student_id, isbn, issue_date, due_date, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.StudentID, t.ISBN, t.IssueDate, t.DueDate, t.Status,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting loan for %s/%s: %w", t.StudentID, t.ISBN, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies - 1
		 WHERE isbn = ? AND available_copies > 0`,
		t.ISBN,
	)
	if err != nil {
		return fmt.Errorf("sqlite: decrementing copies of %s: %w", t.ISBN, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NoCopiesAvailable(t.ISBN)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing issue: %w", err)
	}

	r.db.markDirty()
	return nil
}

// Return atomically flips the loan to returned and puts the copy back.
//
// The status flip's WHERE clause (`AND status = 'issued'`) makes a double
// return structurally impossible: the second call matches zero rows and the
// increment never runs, so available_copies moves exactly once per return.
//
// The increment is bounded (`available_copies < total_copies`) and its
// RowsAffected is deliberately ignored: zero rows means either the book row
// was deleted after the issue or the counter is already at total. In both
// cases the loan record is authoritative and the return itself succeeds.
func (r *TransactionRepo) Return(ctx context.Context, id string, returnedAt time.Time) (*model.Transaction, error) {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning return transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTransactionRow(tx.QueryRowContext(ctx,
		`SELECT id, student_id, isbn, issue_date, due_date, return_date, status
		 FROM transactions WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("transaction", id)
		}
		return nil, fmt.Errorf("sqlite: getting transaction %s: %w", id, err)
	}
	if t.Status == model.StatusReturned {
		return nil, apperror.AlreadyReturned(id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, return_date = ?
		 WHERE id = ? AND status = ?`,
		model.StatusReturned, returnedAt, id, model.StatusIssued,
	); err != nil {
		return nil, fmt.Errorf("sqlite: marking transaction %s returned: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies + 1
		 WHERE isbn = ? AND available_copies < total_copies`,
		t.ISBN,
	); err != nil {
		return nil, fmt.Errorf("sqlite: incrementing copies of %s: %w", t.ISBN, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing return: %w", err)
	}

	t.Status = model.StatusReturned
	t.ReturnDate = &returnedAt
	r.db.markDirty()
	return t, nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	t, err := scanTransactionRow(r.db.conn.QueryRowContext(ctx,
		`SELECT id, student_id, isbn, issue_date, due_date, return_date, status
		 FROM transactions WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("transaction", id)
		}
		return nil, fmt.Errorf("sqlite: getting transaction %s: %w", id, err)
	}
	return t, nil
}

// loanSelect is the joined projection shared by every list-style query.
// LEFT JOINs: a loan whose student or book row has been deleted still shows
// up, with an empty name/title, because the loan record is authoritative.
const loanSelect = `
	SELECT t.id, t.student_id, t.isbn, t.issue_date, t.due_date, t.return_date, t.status,
	       COALESCE(s.name, ''), COALESCE(b.title, ''), COALESCE(b.author, '')
	FROM transactions t
	LEFT JOIN students s ON t.student_id = s.student_id
	LEFT JOIN books b ON t.isbn = b.isbn`

// List returns loans newest-issued first with limit/offset pagination.
func (r *TransactionRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.Loan, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLoanLimit
	}
	if limit > MaxLoanLimit {
		limit = MaxLoanLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.conn.QueryContext(ctx,
		loanSelect+` ORDER BY t.issue_date DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// Search matches term case-insensitively against the student id, the joined
// student name, the joined book title and the isbn. Capped at 500 rows — a
// usability bound on worst-case payload, not a correctness invariant.
func (r *TransactionRepo) Search(ctx context.Context, term string) ([]model.Loan, error) {
	pattern := "%" + term + "%"
	rows, err := r.db.conn.QueryContext(ctx,
		loanSelect+`
		 WHERE t.student_id LIKE ? OR s.name LIKE ? OR b.title LIKE ? OR t.isbn LIKE ?
		 ORDER BY t.issue_date DESC LIMIT ?`,
		pattern, pattern, pattern, pattern, searchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// Overdue lists issued loans whose due date has passed, earliest due first.
func (r *TransactionRepo) Overdue(ctx context.Context, now time.Time) ([]model.Loan, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		loanSelect+`
		 WHERE t.status = ? AND t.due_date < ?
		 ORDER BY t.due_date ASC`,
		model.StatusIssued, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing overdue loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// ActiveExists is the duplicate-loan guard: true if the student already has
// this book out. Probes the (student_id, isbn, status) index.
func (r *TransactionRepo) ActiveExists(ctx context.Context, studentID, isbn string) (bool, error) {
	var one int
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM transactions
		 WHERE student_id = ? AND isbn = ? AND status = ? LIMIT 1`,
		studentID, isbn, model.StatusIssued,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking active loan %s/%s: %w", studentID, isbn, err)
	}
	return true, nil
}

func (r *TransactionRepo) ActiveByStudent(ctx context.Context, studentID string) ([]model.Loan, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		loanSelect+`
		 WHERE t.student_id = ? AND t.status = ?
		 ORDER BY t.issue_date DESC`,
		studentID, model.StatusIssued,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing active loans for student %s: %w", studentID, err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

func (r *TransactionRepo) ActiveByISBN(ctx context.Context, isbn string) ([]model.Loan, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		loanSelect+`
		 WHERE t.isbn = ? AND t.status = ?
		 ORDER BY t.issue_date DESC`,
		isbn, model.StatusIssued,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing active loans for book %s: %w", isbn, err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

func (r *TransactionRepo) CountIssued(ctx context.Context) (int, error) {
	var n int
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE status = ?`,
		model.StatusIssued,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting issued loans: %w", err)
	}
	return n, nil
}

// Delete removes a loan record, but only a returned one — the WHERE clause
// refuses to touch active loans, and we distinguish "doesn't exist" from
// "still issued" for the caller's error message.
func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND status = ?`,
		id, model.StatusReturned,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting transaction %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		// Either no such row, or it's an active loan we must preserve.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return apperror.IntegrityBlocked(fmt.Sprintf(
			"transaction %s is an active loan and cannot be deleted; return the book first", id))
	}

	r.db.markDirty()
	return nil
}

// rowScanner lets scanTransactionRow accept both *sql.Row and the row shape
// inside a transaction.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionRow(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	var returnDate sql.NullTime
	err := row.Scan(
		&t.ID, &t.StudentID, &t.ISBN, &t.IssueDate, &t.DueDate, &returnDate, &t.Status,
	)
	if err != nil {
		return nil, err
	}
	if returnDate.Valid {
		t.ReturnDate = &returnDate.Time
	}
	return &t, nil
}

func scanLoans(rows *sql.Rows) ([]model.Loan, error) {
	loans := make([]model.Loan, 0, 16)
	for rows.Next() {
		var l model.Loan
		var returnDate sql.NullTime
		if err := rows.Scan(
			&l.ID, &l.StudentID, &l.ISBN, &l.IssueDate, &l.DueDate, &returnDate, &l.Status,
			&l.StudentName, &l.BookTitle, &l.BookAuthor,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning loan row: %w", err)
		}
		if returnDate.Valid {
			l.ReturnDate = &returnDate.Time
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating loans: %w", err)
	}
	return loans, nil
}
