// Package export builds Excel workbooks for the record-keeping exports.
//
// Each builder takes a plain slice of records and returns an in-memory
// *excelize.File; the HTTP handler streams it out with WriteTo. Layout is
// deliberately plain — a header row, the data rows, and a generated-at
// footer. Column widths are the only formatting.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nafis/library-server/internal/model"
)

const sheetName = "Sheet1"

// timeLayout renders timestamps the way the front desk reads them.
const timeLayout = "2006-01-02 15:04"

// Students builds a workbook listing every student record.
func Students(students []model.Student, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	header := []any{"Student ID", "Name", "Email", "Phone", "Department", "Year", "Registered"}
	rows := make([][]any, 0, len(students))
	for _, s := range students {
		rows = append(rows, []any{
			s.StudentID, s.Name, s.Email, s.Phone, s.Department, s.Year,
			s.CreatedAt.Format(timeLayout),
		})
	}

	if err := fillSheet(f, header, rows, now); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", "G", 20); err != nil {
		f.Close()
		return nil, fmt.Errorf("export: setting column widths: %w", err)
	}
	return f, nil
}

// Books builds a workbook listing the catalog with copy counts.
func Books(books []model.Book, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	header := []any{"ISBN", "Title", "Author", "Publisher", "Category", "Total Copies", "Available Copies"}
	rows := make([][]any, 0, len(books))
	for _, b := range books {
		rows = append(rows, []any{
			b.ISBN, b.Title, b.Author, b.Publisher, b.Category,
			b.TotalCopies, b.AvailableCopies,
		})
	}

	if err := fillSheet(f, header, rows, now); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", "E", 24); err != nil {
		f.Close()
		return nil, fmt.Errorf("export: setting column widths: %w", err)
	}
	return f, nil
}

// Transactions builds a workbook of the loan history, with the joined
// student names and book titles so the sheet is readable on its own.
func Transactions(loans []model.Loan, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	header := []any{"Transaction ID", "Student ID", "Student Name", "ISBN", "Book Title",
		"Issue Date", "Due Date", "Return Date", "Status"}
	rows := make([][]any, 0, len(loans))
	for _, l := range loans {
		returned := ""
		if l.ReturnDate != nil {
			returned = l.ReturnDate.Format(timeLayout)
		}
		rows = append(rows, []any{
			l.ID, l.StudentID, l.StudentName, l.ISBN, l.BookTitle,
			l.IssueDate.Format(timeLayout), l.DueDate.Format(timeLayout),
			returned, l.Status,
		})
	}

	if err := fillSheet(f, header, rows, now); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", "I", 20); err != nil {
		f.Close()
		return nil, fmt.Errorf("export: setting column widths: %w", err)
	}
	return f, nil
}

// fillSheet writes the header, the data rows and the generated-at footer.
//
// Excelize addresses cells by name ("A1", "B2", ...), so we convert the
// zero-based column index with CoordinatesToCellName.
func fillSheet(f *excelize.File, header []any, rows [][]any, now time.Time) error {
	if err := writeRow(f, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	// Footer goes one blank row below the data
	footerRow := len(rows) + 3
	cell, err := excelize.CoordinatesToCellName(1, footerRow)
	if err != nil {
		return fmt.Errorf("export: footer cell name: %w", err)
	}
	generated := fmt.Sprintf("Generated at %s", now.Format(timeLayout))
	if err := f.SetCellValue(sheetName, cell, generated); err != nil {
		return fmt.Errorf("export: writing footer: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("export: cell name (%d,%d): %w", col+1, row, err)
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("export: writing cell %s: %w", cell, err)
		}
	}
	return nil
}
