package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/service"
)

// LoanHandler exposes the loan workflow and the statistics dashboard.
type LoanHandler struct {
	loans  *service.LoanService
	logger *slog.Logger
}

func NewLoanHandler(loans *service.LoanService, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{loans: loans, logger: logger}
}

// HandleIssue lends a book to a student.
//
// HTTP: POST /api/loans
// REQUEST BODY: {"studentId":"CSE-001","isbn":"978-..."}
//
// Failure modes worth knowing as an API consumer: 409 conflict for a
// duplicate loan or no copies left, 404 for an unknown student or book.
func (h *LoanHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var in struct {
		StudentID string `json:"studentId"`
		ISBN      string `json:"isbn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	tx, err := h.loans.Issue(r.Context(), principal(r), in.StudentID, in.ISBN)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// HandleReturn accepts a borrowed copy back.
//
// HTTP: POST /api/loans/{id}/return
func (h *LoanHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	tx, err := h.loans.Return(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleList returns loans with joined names.
//
// HTTP: GET /api/loans?limit=50&offset=100
// Both parameters are optional; omitted means the default view.
func (h *LoanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	loans, err := h.loans.List(r.Context(), principal(r), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// HandleSearch returns loans matching ?q=term.
//
// HTTP: GET /api/loans/search?q=alice
func (h *LoanHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.Search(r.Context(), principal(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// HandleOverdue returns issued loans past their due date.
//
// HTTP: GET /api/loans/overdue
func (h *LoanHandler) HandleOverdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.Overdue(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// HandleDelete removes a returned loan from the history. 409 for an
// active loan.
//
// HTTP: DELETE /api/loans/{id}
func (h *LoanHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.loans.Delete(r.Context(), principal(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatistics returns the dashboard aggregates.
//
// HTTP: GET /api/statistics
func (h *LoanHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.loans.Statistics(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// queryInt parses an optional integer query parameter; absent or garbage
// both come back as zero, which the service treats as "use the default".
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
