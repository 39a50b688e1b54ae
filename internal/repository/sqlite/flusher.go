package sqlite

import (
	"database/sql"
	"sync"
	"time"
)

// flusher debounces disk flushes.
//
// Every write lands in the WAL immediately (that's the durability SQLite
// gives us per statement), but checkpointing the WAL into the main database
// file on every single write would turn a burst of form submissions into a
// burst of fsyncs. Instead, each write marks the store dirty and arms a
// timer; the checkpoint runs once, after a quiet period with no further
// writes — the same coalescing a debounced save gives a desktop app.
//
// The flush is best-effort: an abrupt process kill between a write and the
// next checkpoint leaves that write in the WAL (SQLite replays it on the
// next open). Close performs a final synchronous checkpoint so a graceful
// shutdown never leaves anything pending.
type flusher struct {
	conn  *sql.DB
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func newFlusher(conn *sql.DB, delay time.Duration) *flusher {
	return &flusher{conn: conn, delay: delay}
}

// markDirty schedules a flush after the quiet period, pushing back any
// flush already scheduled. Safe to call from any goroutine.
func (f *flusher) markDirty() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.delay, f.flush)
}

// flush checkpoints the WAL. Errors are swallowed: a failed checkpoint is
// retried implicitly by the next write's markDirty, and the data is still
// safe in the WAL meanwhile.
func (f *flusher) flush() {
	f.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
}

// Close cancels any pending timer and runs one final synchronous flush.
func (f *flusher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	f.flush()
}
