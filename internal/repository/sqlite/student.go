package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository"
)

// Compile-time check that *StudentRepo implements the interface.
// `var _ X = (*Y)(nil)` fails the build immediately if a method is missing,
// instead of at some distant call site.
var _ repository.StudentRepository = (*StudentRepo)(nil)

// StudentRepo implements repository.StudentRepository on top of a shared *DB.
type StudentRepo struct {
	db *DB
}

func NewStudentRepo(db *DB) *StudentRepo {
	return &StudentRepo{db: db}
}

// Create inserts a new student. The student_id is externally assigned (roll
// number, card number) — a duplicate maps to ErrConflict, not a silent
// overwrite.
func (r *StudentRepo) Create(ctx context.Context, student *model.Student) error {
	student.CreatedAt = time.Now()

	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO students (student_id, name, email, phone, department, year, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		student.StudentID,
		student.Name,
		student.Email,
		student.Phone,
		student.Department,
		student.Year,
		student.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("student", student.StudentID)
		}
		return fmt.Errorf("sqlite: creating student %s: %w", student.StudentID, err)
	}

	r.db.markDirty()
	return nil
}

// GetByStudentID retrieves a single student.
// sql.ErrNoRows is not a database failure — it means "no such student", so
// we translate it into the domain's NotFound error here, once, and every
// layer above just checks errors.Is(err, apperror.ErrNotFound).
func (r *StudentRepo) GetByStudentID(ctx context.Context, studentID string) (*model.Student, error) {
	var s model.Student

	err := r.db.conn.QueryRowContext(ctx,
		`SELECT student_id, name, email, phone, department, year, created_at
		 FROM students WHERE student_id = ?`,
		studentID,
	).Scan(
		&s.StudentID, &s.Name, &s.Email, &s.Phone, &s.Department, &s.Year, &s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("student", studentID)
		}
		return nil, fmt.Errorf("sqlite: getting student %s: %w", studentID, err)
	}

	return &s, nil
}

// List returns all students, newest first.
func (r *StudentRepo) List(ctx context.Context) ([]model.Student, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT student_id, name, email, phone, department, year, created_at
		 FROM students ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Search matches term as a case-insensitive substring against student_id,
// name, email and department. SQLite's LIKE is case-insensitive for ASCII
// out of the box, which is all this needs.
func (r *StudentRepo) Search(ctx context.Context, term string) ([]model.Student, error) {
	pattern := "%" + term + "%"
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT student_id, name, email, phone, department, year, created_at
		 FROM students
		 WHERE student_id LIKE ? OR name LIKE ? OR email LIKE ? OR department LIKE ?
		 ORDER BY created_at DESC`,
		pattern, pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Update modifies an existing student's details. The student_id itself is
// immutable — it's the identity loans reference.
func (r *StudentRepo) Update(ctx context.Context, student *model.Student) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE students
		 SET name = ?, email = ?, phone = ?, department = ?, year = ?
		 WHERE student_id = ?`,
		student.Name,
		student.Email,
		student.Phone,
		student.Department,
		student.Year,
		student.StudentID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating student %s: %w", student.StudentID, err)
	}

	// RowsAffected == 0 means the WHERE clause matched nothing → not found.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("student", student.StudentID)
	}

	r.db.markDirty()
	return nil
}

// Delete removes a student row. The active-loan guard lives in the service
// layer (it needs the joined book titles for the error message); this method
// only removes the row.
func (r *StudentRepo) Delete(ctx context.Context, studentID string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM students WHERE student_id = ?`, studentID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting student %s: %w", studentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("student", studentID)
	}

	r.db.markDirty()
	return nil
}

// Count returns the number of registered students (statistics aggregate).
func (r *StudentRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting students: %w", err)
	}
	return n, nil
}

func scanStudents(rows *sql.Rows) ([]model.Student, error) {
	students := make([]model.Student, 0, 16)
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(
			&s.StudentID, &s.Name, &s.Email, &s.Phone, &s.Department, &s.Year, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning student row: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating students: %w", err)
	}
	return students, nil
}
