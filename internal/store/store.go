// Package store persists Belya supervisor state in SQLite: sessions,
// tool-call history, quota windows, and cached branch context.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
)

// Store owns all persisted rows for sessions, tool_calls, quota_windows,
// and branch_context. No other component touches the database directly;
// every mutation goes through a transactional operation here.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	// Compaction policy. Compact collapses history once the raw record
	// count for a session exceeds compactMax, keeping the newest
	// compactRetain raw records.
	compactMax    int
	compactRetain int
}

// Default compaction policy, overridable via SetCompactionPolicy.
const (
	defaultCompactMax    = 100
	defaultCompactRetain = 10
)

// NewStore initializes the SQLite database at the given path.
func NewStore(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewStore")
	defer timer.Stop()

	logging.Store("Initializing session store at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// PRAGMA synchronous=NORMAL provides 5-10x write speedup with WAL mode
	// (vs FULL which is default). Safe because WAL already provides crash recovery.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable sqlite foreign_keys: %v", err)
	}

	s := &Store{
		db:            db,
		dbPath:        path,
		compactMax:    defaultCompactMax,
		compactRetain: defaultCompactRetain,
	}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("Session store initialization complete")
	return s, nil
}

// SetCompactionPolicy overrides the history compaction thresholds.
// retain must be smaller than max; invalid values are ignored.
func (s *Store) SetCompactionPolicy(max, retain int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max <= 0 || retain < 0 || retain >= max {
		logging.Get(logging.CategoryStore).Warn("Ignoring invalid compaction policy: max=%d retain=%d", max, retain)
		return
	}
	s.compactMax = max
	s.compactRetain = retain
	logging.StoreDebug("Compaction policy set: max=%d retain=%d", max, retain)
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		branch TEXT NOT NULL DEFAULT '',
		policy TEXT NOT NULL DEFAULT 'never',
		model TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'active'
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`

	// Append order within a session is intent-arrival order; listing and
	// compaction rely on (created_at, rowid) for a stable total order.
	toolCallsTable := `
	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		specialist TEXT NOT NULL,
		tool TEXT NOT NULL,
		input TEXT,
		result_summary TEXT,
		err_summary TEXT,
		token_cost INTEGER,
		compacted INTEGER NOT NULL DEFAULT 0,
		compacted_count INTEGER NOT NULL DEFAULT 0,
		compacted_specialists TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_created ON tool_calls(created_at);
	`

	quotaTable := `
	CREATE TABLE IF NOT EXISTS quota_windows (
		kind TEXT PRIMARY KEY,
		window_start DATETIME NOT NULL,
		accumulated INTEGER NOT NULL DEFAULT 0,
		fired_thresholds TEXT NOT NULL DEFAULT '[]'
	);
	`

	branchTable := `
	CREATE TABLE IF NOT EXISTS branch_context (
		session_id TEXT PRIMARY KEY,
		branch TEXT NOT NULL DEFAULT '',
		dirty INTEGER NOT NULL DEFAULT 0,
		last_sync DATETIME NOT NULL
	);
	`

	for _, table := range []string{
		sessionsTable,
		toolCallsTable,
		quotaTable,
		branchTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Run schema migrations for existing databases (adds missing columns).
	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing session store database connection")
	return s.db.Close()
}

// Stats returns row counts per table, for diagnostics.
func (s *Store) Stats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Stats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"sessions", "tool_calls", "quota_windows", "branch_context"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
