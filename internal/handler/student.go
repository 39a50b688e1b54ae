// Package handler is the HTTP layer: it parses requests, calls services,
// and writes JSON responses. No business rules live here — a handler that
// starts checking roles or copy counts is a smell.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/auth"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/service"
)

// principal pulls the authenticated caller out of the request context.
// Routes behind auth.RequireAuth always have one; the zero Principal (with
// an invalid empty role) fails every service-side capability check, so a
// misrouted handler fails closed rather than open.
func principal(r *http.Request) model.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// StudentHandler exposes the student records over HTTP.
type StudentHandler struct {
	students *service.StudentService
	logger   *slog.Logger
}

func NewStudentHandler(students *service.StudentService, logger *slog.Logger) *StudentHandler {
	return &StudentHandler{students: students, logger: logger}
}

// HandleList returns all students.
//
// HTTP: GET /api/students
func (h *StudentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.List(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

// HandleSearch returns students matching ?q=term.
//
// HTTP: GET /api/students/search?q=alice
func (h *StudentHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.Search(r.Context(), principal(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

// HandleGet returns one student.
//
// HTTP: GET /api/students/{id}
func (h *StudentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	student, err := h.students.Get(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// HandleCreate registers a new student.
//
// HTTP: POST /api/students
// REQUEST BODY: {"studentId":"CSE-001","name":"Alice", ...}
func (h *StudentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.StudentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	student, err := h.students.Create(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

// HandleUpdate edits a student record. The ID in the URL wins over any ID
// in the body.
//
// HTTP: PUT /api/students/{id}
func (h *StudentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.StudentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	student, err := h.students.Update(r.Context(), principal(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// HandleDelete removes a student record. Blocked with 409 while the
// student still holds books.
//
// HTTP: DELETE /api/students/{id}
func (h *StudentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.students.Delete(r.Context(), principal(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLoans lists the student's unreturned loans.
//
// HTTP: GET /api/students/{id}/loans
func (h *StudentHandler) HandleLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.students.Loans(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}
