// Authentication and user-management business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//	                   ↘ PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Verify credentials and issue session tokens
//   - Manage staff accounts (ADMIN only)
//   - Seed the default accounts on first startup
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/auth"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository"
)

// seedUsers are created when the users table is empty, so a fresh install
// is usable out of the box. Change the passwords immediately in any real
// deployment.
var seedUsers = []struct {
	Username    string
	Password    string
	Role        model.Role
	DisplayName string
}{
	{"admin", "admin123", model.RoleAdmin, "Administrator"},
	{"librarian", "librarian123", model.RoleLibrarian, "Librarian"},
	{"viewer", "viewer123", model.RoleViewer, "Viewer"},
}

// UserInput is the payload for creating or updating a staff account.
type UserInput struct {
	Username    string `json:"username"    validate:"required,min=3,max=64"`
	Password    string `json:"password"    validate:"omitempty,min=8,max=72"`
	Role        string `json:"role"        validate:"required,oneof=ADMIN LIBRARIAN VIEWER"`
	DisplayName string `json:"displayName" validate:"omitempty,max=200"`
	IsActive    *bool  `json:"isActive"`
}

// AuthService handles login and staff account management.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Login verifies a username/password pair and issues a session token.
//
// SECURITY NOTE ON ERROR MESSAGES:
// Both "no such user" and "wrong password" return the same Unauthorized
// error. Distinguishing them would let an attacker enumerate valid
// usernames by watching which message comes back.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.Unauthorized("username and password are required")
	}

	// GetByUsername only returns active accounts, so deactivated staff
	// fall into the same invalid-credentials path.
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Warn("failed login attempt", slog.String("username", username))
		return nil, apperror.Unauthorized("invalid username or password")
	}

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.String("userId", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// CreateUser adds a staff account. ADMIN only.
func (s *AuthService) CreateUser(ctx context.Context, p model.Principal, in UserInput) (*model.User, error) {
	if !p.Role.CanManageUsers() {
		return nil, apperror.Forbidden("only administrators can manage users")
	}

	in.Username = strings.TrimSpace(in.Username)
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperror.ValidationFailed("password", "password is required for new users")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         model.Role(in.Role),
		DisplayName:  strings.TrimSpace(in.DisplayName),
		IsActive:     true,
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.String("userId", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// ListUsers returns all staff accounts, active or not. ADMIN only.
func (s *AuthService) ListUsers(ctx context.Context, p model.Principal) ([]model.User, error) {
	if !p.Role.CanManageUsers() {
		return nil, apperror.Forbidden("only administrators can manage users")
	}
	return s.users.List(ctx)
}

// UpdateUser changes a staff account's display name, role or active flag.
// ADMIN only. The username is fixed; the password has its own path.
//
// LOCKOUT GUARD:
// An admin cannot demote or deactivate their own account — otherwise the
// last administrator could lock everyone out of user management.
func (s *AuthService) UpdateUser(ctx context.Context, p model.Principal, id string, in UserInput) (*model.User, error) {
	if !p.Role.CanManageUsers() {
		return nil, apperror.Forbidden("only administrators can manage users")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	role := model.Role(in.Role)
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be one of: ADMIN LIBRARIAN VIEWER")
	}

	newActive := user.IsActive
	if in.IsActive != nil {
		newActive = *in.IsActive
	}
	if id == p.UserID && (role != model.RoleAdmin || !newActive) {
		return nil, apperror.ValidationFailed("role", "you cannot demote or deactivate your own account")
	}

	user.Role = role
	user.IsActive = newActive
	if name := strings.TrimSpace(in.DisplayName); name != "" {
		user.DisplayName = name
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated",
		slog.String("userId", user.ID),
		slog.String("role", string(user.Role)),
		slog.Bool("isActive", user.IsActive),
	)
	return user, nil
}

// ChangePassword sets a new password. Admins can reset anyone's; everyone
// else only their own.
func (s *AuthService) ChangePassword(ctx context.Context, p model.Principal, id, newPassword string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}
	if id != p.UserID && !p.Role.CanManageUsers() {
		return apperror.Forbidden("you can only change your own password")
	}
	if len(newPassword) < 8 {
		return apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("userId", id))
	return nil
}

// DeleteUser removes a staff account. ADMIN only; self-deletion is blocked
// for the same lockout reason as self-demotion.
func (s *AuthService) DeleteUser(ctx context.Context, p model.Principal, id string) error {
	if !p.Role.CanManageUsers() {
		return apperror.Forbidden("only administrators can manage users")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}
	if id == p.UserID {
		return apperror.ValidationFailed("id", "you cannot delete your own account")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("user deleted", slog.String("userId", id))
	return nil
}

// Seed creates the default accounts if the users table is empty.
// Called once at startup, before the server accepts requests.
func (s *AuthService) Seed(ctx context.Context) error {
	n, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil
	}

	for _, su := range seedUsers {
		hash, err := s.passwords.Hash(su.Password)
		if err != nil {
			return fmt.Errorf("hashing seed password for %s: %w", su.Username, err)
		}
		user := &model.User{
			Username:     su.Username,
			PasswordHash: hash,
			Role:         su.Role,
			DisplayName:  su.DisplayName,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("seeding user %s: %w", su.Username, err)
		}
	}

	s.logger.Info("seeded default users", slog.Int("count", len(seedUsers)))
	return nil
}
