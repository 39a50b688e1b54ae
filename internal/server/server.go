// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root — the one place where every
// dependency in the system is created and wired together:
//
//	config → sqlite.DB → repositories → cache + services → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, and nothing below the handler layer
// ever sees HTTP.
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same wiring)
// - Clean (main.go stays minimal — load config, start the server)
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nafis/library-server/internal/auth"
	"github.com/nafis/library-server/internal/cache"
	"github.com/nafis/library-server/internal/config"
	"github.com/nafis/library-server/internal/handler"
	"github.com/nafis/library-server/internal/middleware"
	sqliteRepo "github.com/nafis/library-server/internal/repository/sqlite"
	"github.com/nafis/library-server/internal/service"
)

// Server owns the router, the database connection and the cache.
//
// RESOURCE MANAGEMENT:
// The database and the cache both hold resources (a file lock and WAL
// pages; revert timers). Start() closes them during graceful shutdown —
// the database last, so the final WAL checkpoint runs after the last
// request finishes.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	cache  *cache.Cache
}

// New assembles the full dependency chain and registers all routes.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath, cfg.FlushDelay)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		cache:  cache.New(cache.Defaults()),
	}

	if err := s.setup(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// setup wires repositories, services and handlers, then registers routes.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/login              → issue a bearer token (open)
//	GET    /api/users                   → list staff accounts      (ADMIN)
//	POST   /api/users                   → create staff account     (ADMIN)
//	PUT    /api/users/{id}              → update staff account     (ADMIN)
//	PUT    /api/users/{id}/password     → change password    (self or ADMIN)
//	DELETE /api/users/{id}              → delete staff account     (ADMIN)
//	GET    /api/students                → list students
//	GET    /api/students/search?q=      → search students
//	GET    /api/students/{id}           → get one student
//	GET    /api/students/{id}/loans     → a student's loan history
//	POST   /api/students                → add student         (LIBRARIAN+)
//	PUT    /api/students/{id}           → update student       (LIBRARIAN+)
//	DELETE /api/students/{id}           → delete student       (LIBRARIAN+)
//	GET    /api/books ...               → same shape, keyed by {isbn}
//	POST   /api/loans                   → issue a book         (LIBRARIAN+)
//	POST   /api/loans/{id}/return       → return a book        (LIBRARIAN+)
//	GET    /api/loans?limit=&offset=    → list loans
//	GET    /api/loans/search?q=         → search loans
//	GET    /api/loans/overdue           → overdue loans
//	DELETE /api/loans/{id}              → purge a returned loan (LIBRARIAN+)
//	GET    /api/statistics              → dashboard counters
//	GET    /api/export/{type}           → Excel download
//
// Everything under /api except login sits behind the JWT middleware.
// Role checks happen in the services, not here — the router only decides
// whether a request is authenticated at all.
func (s *Server) setup() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(s.config.BcryptCost)

	studentRepo := sqliteRepo.NewStudentRepo(s.db)
	bookRepo := sqliteRepo.NewBookRepo(s.db)
	loanRepo := sqliteRepo.NewTransactionRepo(s.db)
	userRepo := sqliteRepo.NewUserRepo(s.db)

	studentSvc := service.NewStudentService(studentRepo, loanRepo, s.cache, s.logger)
	bookSvc := service.NewBookService(bookRepo, loanRepo, s.cache, s.logger)
	loanSvc := service.NewLoanService(loanRepo, studentRepo, bookRepo, s.cache, s.logger)
	authSvc := service.NewAuthService(userRepo, tokens, passwords, s.logger)

	// Default accounts so a fresh install has someone who can log in.
	if err := authSvc.Seed(context.Background()); err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}

	studentHandler := handler.NewStudentHandler(studentSvc, s.logger)
	bookHandler := handler.NewBookHandler(bookSvc, s.logger)
	loanHandler := handler.NewLoanHandler(loanSvc, s.logger)
	authHandler := handler.NewAuthHandler(authSvc, s.logger)
	exportHandler := handler.NewExportHandler(studentSvc, bookSvc, loanSvc, s.logger)
	debugHandler := handler.NewDebugHandler(s.cache)

	// Global middleware, in order: request ID → real IP → our structured
	// logger → panic recovery.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		// The only route reachable without a token.
		r.Post("/auth/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/users", authHandler.HandleListUsers)
			r.Post("/users", authHandler.HandleCreateUser)
			r.Put("/users/{id}", authHandler.HandleUpdateUser)
			r.Put("/users/{id}/password", authHandler.HandleChangePassword)
			r.Delete("/users/{id}", authHandler.HandleDeleteUser)

			r.Get("/students", studentHandler.HandleList)
			r.Get("/students/search", studentHandler.HandleSearch)
			r.Get("/students/{id}", studentHandler.HandleGet)
			r.Get("/students/{id}/loans", studentHandler.HandleLoans)
			r.Post("/students", studentHandler.HandleCreate)
			r.Put("/students/{id}", studentHandler.HandleUpdate)
			r.Delete("/students/{id}", studentHandler.HandleDelete)

			r.Get("/books", bookHandler.HandleList)
			r.Get("/books/search", bookHandler.HandleSearch)
			r.Get("/books/{isbn}", bookHandler.HandleGet)
			r.Post("/books", bookHandler.HandleCreate)
			r.Put("/books/{isbn}", bookHandler.HandleUpdate)
			r.Delete("/books/{isbn}", bookHandler.HandleDelete)

			r.Post("/loans", loanHandler.HandleIssue)
			r.Post("/loans/{id}/return", loanHandler.HandleReturn)
			r.Get("/loans", loanHandler.HandleList)
			r.Get("/loans/search", loanHandler.HandleSearch)
			r.Get("/loans/overdue", loanHandler.HandleOverdue)
			r.Delete("/loans/{id}", loanHandler.HandleDelete)

			r.Get("/statistics", loanHandler.HandleStatistics)
			r.Get("/export/{type}", exportHandler.HandleExport)
			r.Get("/debug/cache", debugHandler.HandleCacheStats)
		})
	})

	return nil
}

// Start runs the HTTP server until a shutdown signal arrives.
//
// GRACEFUL SHUTDOWN ORDER:
// 1. Stop accepting new connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the cache's revert timers
// 4. Close the database connection (final WAL checkpoint, release lock)
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.cache.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
