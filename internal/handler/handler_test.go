package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/nafis/library-server/internal/auth"
	"github.com/nafis/library-server/internal/cache"
	"github.com/nafis/library-server/internal/handler"
	"github.com/nafis/library-server/internal/model"
	"github.com/nafis/library-server/internal/repository/sqlite"
	"github.com/nafis/library-server/internal/service"
)

// =========================================================================
// HANDLER TEST FIXTURE
//
// Handlers are thin, so we test them against the real services backed by
// an in-memory SQLite database — the same wiring the server uses, minus
// the router. Authentication is bypassed by planting a Principal directly
// in the request context (the middleware has its own tests); authorization
// still runs for real inside the services.
// =========================================================================

var (
	asAdmin     = model.Principal{UserID: "u-admin", Role: model.RoleAdmin}
	asLibrarian = model.Principal{UserID: "u-lib", Role: model.RoleLibrarian}
	asViewer    = model.Principal{UserID: "u-view", Role: model.RoleViewer}
)

type apiFixture struct {
	students *handler.StudentHandler
	books    *handler.BookHandler
	loans    *handler.LoanHandler
	auth     *handler.AuthHandler
	export   *handler.ExportHandler

	authSvc *service.AuthService
	tokens  *auth.TokenService
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:", 0)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c := cache.New(cache.Defaults())
	t.Cleanup(c.Close)

	studentRepo := sqlite.NewStudentRepo(db)
	bookRepo := sqlite.NewBookRepo(db)
	loanRepo := sqlite.NewTransactionRepo(db)
	userRepo := sqlite.NewUserRepo(db)

	tokens, err := auth.NewTokenService("handler-test-secret")
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}
	passwords := auth.NewPasswordServiceWithCost(4) // low cost keeps tests fast

	studentSvc := service.NewStudentService(studentRepo, loanRepo, c, logger)
	bookSvc := service.NewBookService(bookRepo, loanRepo, c, logger)
	loanSvc := service.NewLoanService(loanRepo, studentRepo, bookRepo, c, logger)
	authSvc := service.NewAuthService(userRepo, tokens, passwords, logger)

	return &apiFixture{
		students: handler.NewStudentHandler(studentSvc, logger),
		books:    handler.NewBookHandler(bookSvc, logger),
		loans:    handler.NewLoanHandler(loanSvc, logger),
		auth:     handler.NewAuthHandler(authSvc, logger),
		export:   handler.NewExportHandler(studentSvc, bookSvc, loanSvc, logger),
		authSvc:  authSvc,
		tokens:   tokens,
	}
}

// request builds a test request carrying the given principal, as if it had
// already passed the auth middleware.
func request(method, target, body string, p model.Principal) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(auth.ContextWithPrincipal(req.Context(), p))
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func (f *apiFixture) createStudent(t *testing.T, studentID, name string) {
	t.Helper()
	body := `{"studentId":"` + studentID + `","name":"` + name + `"}`
	rr := httptest.NewRecorder()
	f.students.HandleCreate(rr, request(http.MethodPost, "/api/students", body, asLibrarian))
	if rr.Code != http.StatusCreated {
		t.Fatalf("failed to create student %s: status %d, body %s", studentID, rr.Code, rr.Body.String())
	}
}

func (f *apiFixture) createBook(t *testing.T, isbn, title string, copies int) {
	t.Helper()
	body := `{"isbn":"` + isbn + `","title":"` + title + `","author":"Test Author","totalCopies":` + strconv.Itoa(copies) + `}`
	rr := httptest.NewRecorder()
	f.books.HandleCreate(rr, request(http.MethodPost, "/api/books", body, asLibrarian))
	if rr.Code != http.StatusCreated {
		t.Fatalf("failed to create book %s: status %d, body %s", isbn, rr.Code, rr.Body.String())
	}
}
