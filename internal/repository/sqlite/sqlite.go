// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// The whole system is one librarian desk talking to one data file. An
// embedded database — no server process, a single file on disk — is exactly
// the right shape. ":memory:" gives us free, isolated databases in tests.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite" at init time.
	_ "modernc.org/sqlite"
)

// DefaultFlushDelay is the quiet period the debounced disk flush waits for
// after the last write before checkpointing the WAL. See flusher.go.
const DefaultFlushDelay = 300 * time.Millisecond

// DB wraps a sql.DB connection pool and owns the schema and the flusher.
// The per-entity repositories (StudentRepo, BookRepo, TransactionRepo,
// UserRepo) all share one *DB — construct them with their NewXxxRepo
// functions, passing the same instance.
type DB struct {
	conn    *sql.DB
	flusher *flusher
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/library.db" → file-based, persistent
//   - ":memory:"        → in-memory, destroyed on close (tests)
//
// flushDelay configures the debounced WAL flush; pass DefaultFlushDelay in
// production and 0 to disable flushing entirely (in-memory test databases
// have nothing to flush).
func New(dbPath string, flushDelay time.Duration) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open doesn't actually connect — force it now so a bad path or
	// permissions problem surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets reads proceed while a write is in flight. It also gives
	// the flusher something meaningful to do: writes land in the WAL first
	// and the debounced checkpoint folds them into the main database file.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. Note the transactions
	// table deliberately does NOT declare FK constraints (see migrate) —
	// loan records must survive the deletion of the student or book rows
	// they reference. The deletion guards in the service layer are the
	// integrity mechanism for active loans.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if flushDelay > 0 {
		db.flusher = newFlusher(conn, flushDelay)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close flushes any pending writes to disk and closes the connection pool.
// It must run on graceful shutdown — a write sitting in the WAL past an
// abrupt exit is the one durability gap this design accepts.
func (db *DB) Close() error {
	if db.flusher != nil {
		db.flusher.Close()
	}
	return db.conn.Close()
}

// markDirty notifies the flusher that a write happened. Every Exec-path
// repository method calls this after a successful mutation.
func (db *DB) markDirty() {
	if db.flusher != nil {
		db.flusher.markDirty()
	}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent, so
// running migrations on every start is safe.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL,
			phone      TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			year       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating students table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			isbn             TEXT NOT NULL UNIQUE,
			title            TEXT NOT NULL,
			author           TEXT NOT NULL,
			publisher        TEXT NOT NULL DEFAULT '',
			category         TEXT NOT NULL DEFAULT '',
			total_copies     INTEGER NOT NULL DEFAULT 1,
			available_copies INTEGER NOT NULL DEFAULT 1,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (total_copies >= 1),
			CHECK (available_copies >= 0 AND available_copies <= total_copies)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating books table: %w", err)
	}

	// No FOREIGN KEY clauses here on purpose: a returned loan must remain
	// readable even after its student or book row is deleted. Application-
	// level guards protect active loans instead.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id          TEXT PRIMARY KEY,
			student_id  TEXT NOT NULL,
			isbn        TEXT NOT NULL,
			issue_date  DATETIME NOT NULL,
			due_date    DATETIME NOT NULL,
			return_date DATETIME,
			status      TEXT NOT NULL DEFAULT 'issued',
			CHECK (status IN ('issued', 'returned'))
		);
	`)
	if err != nil {
		return fmt.Errorf("creating transactions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			display_name  TEXT NOT NULL DEFAULT '',
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (role IN ('ADMIN', 'LIBRARIAN', 'VIEWER'))
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Indexes: the duplicate-loan guard probes (student_id, isbn, status)
	// on every issue; lists default-sort by issue_date DESC.
	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_trans_active ON transactions(student_id, isbn, status);
		CREATE INDEX IF NOT EXISTS idx_trans_isbn ON transactions(isbn);
		CREATE INDEX IF NOT EXISTS idx_trans_issue_date ON transactions(issue_date);
	`)
	if err != nil {
		return fmt.Errorf("creating transaction indexes: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already
// exist. ALTER TABLE errors on an existing column, so future schema
// migrations check pragma_table_info first. Kept alongside migrate for the
// next schema change.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is SQLite complaining about a
// UNIQUE constraint (duplicate student_id, isbn or username). The pure-Go
// driver doesn't export a typed error for this, so we match the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
