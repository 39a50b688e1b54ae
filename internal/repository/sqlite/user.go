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

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implements repository.UserRepository on top of a shared *DB.
type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user account. The caller (auth service) has already
// hashed the password; this layer never sees plaintext.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()

	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, display_name, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.DisplayName,
		user.IsActive,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: creating user %s: %w", user.Username, err)
	}

	r.db.markDirty()
	return nil
}

// GetByUsername looks up an ACTIVE account for login. Deactivated accounts
// are invisible here on purpose — login treats them exactly like unknown
// usernames, leaking nothing about whether the account exists.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUserRow(r.db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, display_name, is_active, created_at
		 FROM users WHERE username = ? AND is_active = 1`,
		username,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUserRow(r.db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, display_name, is_active, created_at
		 FROM users WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// List returns all accounts, oldest first (the admin view shows the seeded
// accounts at the top).
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, username, password_hash, role, display_name, is_active, created_at
		 FROM users ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, 8)
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(
			&u.ID, &u.Username, &u.PasswordHash, &role, &u.DisplayName, &u.IsActive, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// Update modifies display name, role and active flag. Username and password
// are immutable here — the password has its own method so a profile edit
// can never accidentally blank a credential.
func (r *UserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET display_name = ?, role = ?, is_active = ? WHERE id = ?`,
		user.DisplayName,
		string(user.Role),
		user.IsActive,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	r.db.markDirty()
	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	r.db.markDirty()
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM users WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	r.db.markDirty()
	return nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

func scanUserRow(row rowScanner) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &role, &u.DisplayName, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
