package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/service"
)

// BookHandler exposes the book catalog over HTTP.
type BookHandler struct {
	books  *service.BookService
	logger *slog.Logger
}

func NewBookHandler(books *service.BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{books: books, logger: logger}
}

// HandleList returns the whole catalog.
//
// HTTP: GET /api/books
func (h *BookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// HandleSearch returns catalog entries matching ?q=term.
//
// HTTP: GET /api/books/search?q=compilers
func (h *BookHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.Search(r.Context(), principal(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// HandleGet returns one book.
//
// HTTP: GET /api/books/{isbn}
func (h *BookHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	book, err := h.books.Get(r.Context(), principal(r), r.PathValue("isbn"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleCreate adds a book to the catalog.
//
// HTTP: POST /api/books
// REQUEST BODY: {"isbn":"978-...","title":"...","author":"...","totalCopies":3}
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.BookInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	book, err := h.books.Create(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// HandleUpdate edits a catalog entry. The ISBN in the URL wins over any
// ISBN in the body.
//
// HTTP: PUT /api/books/{isbn}
func (h *BookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.BookInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	book, err := h.books.Update(r.Context(), principal(r), r.PathValue("isbn"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleDelete removes a book. Blocked with 409 while copies are on loan.
//
// HTTP: DELETE /api/books/{isbn}
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.books.Delete(r.Context(), principal(r), r.PathValue("isbn")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
