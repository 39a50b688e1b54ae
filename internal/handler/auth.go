package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/service"
)

// AuthHandler exposes login and staff account management.
//
// ENDPOINTS:
//   - HandleLogin          → verify credentials, return a bearer token
//   - HandleListUsers      → list staff accounts (ADMIN)
//   - HandleCreateUser     → add a staff account (ADMIN)
//   - HandleUpdateUser     → edit role / display name / active flag (ADMIN)
//   - HandleChangePassword → set a new password (self or ADMIN)
//   - HandleDeleteUser     → remove an account (ADMIN)
//
// The token travels in the response body, not a cookie — the clients of
// this API are desktop front ends and scripts, which hold the token
// themselves and send it back as an Authorization header.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// HandleLogin verifies a username/password pair and issues a token.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"username":"admin","password":"..."}
// RESPONSE: {"token":"<jwt>","user":{...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	result, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  result.User,
	})
}

// HandleListUsers returns all staff accounts.
//
// HTTP: GET /api/users
func (h *AuthHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleCreateUser adds a staff account.
//
// HTTP: POST /api/users
func (h *AuthHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	user, err := h.auth.CreateUser(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleUpdateUser edits a staff account's role, display name or active
// flag.
//
// HTTP: PUT /api/users/{id}
func (h *AuthHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	user, err := h.auth.UpdateUser(r.Context(), principal(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleChangePassword sets a new password for the given account.
//
// HTTP: PUT /api/users/{id}/password
// REQUEST BODY: {"password":"new-password"}
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	if err := h.auth.ChangePassword(r.Context(), principal(r), r.PathValue("id"), in.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteUser removes a staff account.
//
// HTTP: DELETE /api/users/{id}
func (h *AuthHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteUser(r.Context(), principal(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
