package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nafis/library-server/internal/handler"
	"github.com/nafis/library-server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueLoan(t *testing.T, f *apiFixture, studentID, isbn string) model.Transaction {
	t.Helper()
	body := `{"studentId":"` + studentID + `","isbn":"` + isbn + `"}`
	rr := httptest.NewRecorder()
	f.loans.HandleIssue(rr, request(http.MethodPost, "/api/loans", body, asLibrarian))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var tx model.Transaction
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tx))
	return tx
}

func TestLoanHandler_Issue(t *testing.T) {
	f := newAPI(t)
	f.createStudent(t, "S-001", "Alice Rahman")
	f.createBook(t, "978-0-13-468599-1", "Distributed Systems", 2)

	tx := issueLoan(t, f, "S-001", "978-0-13-468599-1")

	assert.Equal(t, "S-001", tx.StudentID)
	assert.Equal(t, "978-0-13-468599-1", tx.ISBN)
	assert.Equal(t, model.StatusIssued, tx.Status)
	assert.NotEmpty(t, tx.ID)
	assert.True(t, tx.DueDate.After(tx.IssueDate), "due date should be after issue date")
}

func TestLoanHandler_IssueErrors(t *testing.T) {
	f := newAPI(t)
	f.createStudent(t, "S-001", "Alice Rahman")
	f.createBook(t, "978-0-00-000000-1", "Single Copy", 1)
	issueLoan(t, f, "S-001", "978-0-00-000000-1")
	f.createStudent(t, "S-002", "Bob Hasan")

	tests := []struct {
		name       string
		body       string
		principal  model.Principal
		wantStatus int
		wantError  string
	}{
		{"malformed JSON", `{"studentId":`, asLibrarian, http.StatusBadRequest, "validation_error"},
		{"missing student id", `{"isbn":"978-0-00-000000-1"}`, asLibrarian, http.StatusBadRequest, "validation_error"},
		{"unknown book", `{"studentId":"S-002","isbn":"999"}`, asLibrarian, http.StatusNotFound, "not_found"},
		{"duplicate loan", `{"studentId":"S-001","isbn":"978-0-00-000000-1"}`, asLibrarian, http.StatusConflict, "conflict"},
		{"no copies left", `{"studentId":"S-002","isbn":"978-0-00-000000-1"}`, asLibrarian, http.StatusConflict, "no_copies_available"},
		{"viewer forbidden", `{"studentId":"S-002","isbn":"978-0-00-000000-1"}`, asViewer, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			f.loans.HandleIssue(rr, request(http.MethodPost, "/api/loans", tt.body, tt.principal))

			assert.Equal(t, tt.wantStatus, rr.Code)

			var res handler.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
			assert.Equal(t, tt.wantError, res.Error)
		})
	}
}

func TestLoanHandler_Return(t *testing.T) {
	f := newAPI(t)
	f.createStudent(t, "S-001", "Alice Rahman")
	f.createBook(t, "978-0-13-468599-1", "Distributed Systems", 2)
	tx := issueLoan(t, f, "S-001", "978-0-13-468599-1")

	req := request(http.MethodPost, "/api/loans/"+tx.ID+"/return", "", asLibrarian)
	req.SetPathValue("id", tx.ID)
	rr := httptest.NewRecorder()
	f.loans.HandleReturn(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var returned model.Transaction
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&returned))
	assert.Equal(t, model.StatusReturned, returned.Status)
	assert.NotNil(t, returned.ReturnDate)

	// Returning the same loan again is a conflict.
	req = request(http.MethodPost, "/api/loans/"+tx.ID+"/return", "", asLibrarian)
	req.SetPathValue("id", tx.ID)
	rr = httptest.NewRecorder()
	f.loans.HandleReturn(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoanHandler_ListAndSearch(t *testing.T) {
	f := newAPI(t)
	f.createStudent(t, "S-001", "Alice Rahman")
	f.createStudent(t, "S-002", "Bob Hasan")
	f.createBook(t, "978-0-13-468599-1", "Distributed Systems", 2)
	f.createBook(t, "978-0-20-161622-4", "The Mythical Man-Month", 1)
	issueLoan(t, f, "S-001", "978-0-13-468599-1")
	issueLoan(t, f, "S-002", "978-0-20-161622-4")

	rr := httptest.NewRecorder()
	f.loans.HandleList(rr, request(http.MethodGet, "/api/loans", "", asViewer))

	require.Equal(t, http.StatusOK, rr.Code)
	var loans []model.Loan
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&loans))
	assert.Len(t, loans, 2)

	// Pagination via query string.
	rr = httptest.NewRecorder()
	f.loans.HandleList(rr, request(http.MethodGet, "/api/loans?limit=1&offset=1", "", asViewer))
	require.Equal(t, http.StatusOK, rr.Code)
	loans = nil
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&loans))
	assert.Len(t, loans, 1)

	// Search matches the joined student name.
	rr = httptest.NewRecorder()
	f.loans.HandleSearch(rr, request(http.MethodGet, "/api/loans/search?q=alice", "", asViewer))
	require.Equal(t, http.StatusOK, rr.Code)
	loans = nil
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&loans))
	require.Len(t, loans, 1)
	assert.Equal(t, "Distributed Systems", loans[0].BookTitle)
}

func TestLoanHandler_DeleteActiveRefused(t *testing.T) {
	f := newAPI(t)
	f.createStudent(t, "S-001", "Alice Rahman")
	f.createBook(t, "978-0-13-468599-1", "Distributed Systems", 2)
	tx := issueLoan(t, f, "S-001", "978-0-13-468599-1")

	req := request(http.MethodDelete, "/api/loans/"+tx.ID, "", asLibrarian)
	req.SetPathValue("id", tx.ID)
	rr := httptest.NewRecorder()
	f.loans.HandleDelete(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// After the book comes back the record can be purged.
	req = request(http.MethodPost, "/api/loans/"+tx.ID+"/return", "", asLibrarian)
	req.SetPathValue("id", tx.ID)
	f.loans.HandleReturn(httptest.NewRecorder(), req)

	req = request(http.MethodDelete, "/api/loans/"+tx.ID, "", asLibrarian)
	req.SetPathValue("id", tx.ID)
	rr = httptest.NewRecorder()
	f.loans.HandleDelete(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestLoanHandler_Statistics(t *testing.T) {
	f := newAPI(t)
	f.createStudent(t, "S-001", "Alice Rahman")
	f.createBook(t, "978-0-13-468599-1", "Distributed Systems", 3)
	issueLoan(t, f, "S-001", "978-0-13-468599-1")

	rr := httptest.NewRecorder()
	f.loans.HandleStatistics(rr, request(http.MethodGet, "/api/statistics", "", asViewer))

	require.Equal(t, http.StatusOK, rr.Code)
	var stats model.Statistics
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalStudents)
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, 3, stats.TotalCopies)
	assert.Equal(t, 2, stats.AvailableCopies)
	assert.Equal(t, 1, stats.IssuedBooks)
}
