package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nafis/library-server/internal/apperror"
	"github.com/nafis/library-server/internal/export"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/service"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler builds Excel workbooks from the current library records.
//
// Exports always read through the services, which hit the repositories
// for list data — a snapshot that is minutes stale is useless to the
// librarian printing it.
type ExportHandler struct {
	students *service.StudentService
	books    *service.BookService
	loans    *service.LoanService
	logger   *slog.Logger
}

func NewExportHandler(students *service.StudentService, books *service.BookService, loans *service.LoanService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{students: students, books: books, loans: loans, logger: logger}
}

// HandleExport streams an .xlsx workbook for the requested record type.
//
// HTTP: GET /api/export/{type}
// where {type} is one of: students, books, transactions
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("type")
	p := principal(r)
	now := time.Now()

	var (
		f   *excelize.File
		err error
	)
	switch kind {
	case "students":
		var students []model.Student
		students, err = h.students.List(r.Context(), p)
		if err == nil {
			f, err = export.Students(students, now)
		}
	case "books":
		var books []model.Book
		books, err = h.books.List(r.Context(), p)
		if err == nil {
			f, err = export.Books(books, now)
		}
	case "transactions":
		var loans []model.Loan
		loans, err = h.loans.List(r.Context(), p, 0, 0)
		if err == nil {
			f, err = export.Transactions(loans, now)
		}
	default:
		writeError(w, apperror.ValidationFailed("type", "unknown export type: "+kind))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("%s_%s.xlsx", kind, now.Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := f.WriteTo(w); err != nil {
		// Headers are already out — all we can do is record it.
		h.logger.Error("export write failed", "type", kind, "error", err)
	}
}
