package store

import (
	"database/sql"
	"fmt"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
)

// Migration defines a database schema migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists all schema migrations to apply.
// These handle cases where tables exist but are missing newer columns.
var pendingMigrations = []Migration{
	// Compaction summary columns (added with the history compaction feature)
	{"tool_calls", "compacted", "INTEGER NOT NULL DEFAULT 0"},
	{"tool_calls", "compacted_count", "INTEGER NOT NULL DEFAULT 0"},
	{"tool_calls", "compacted_specialists", "TEXT"},
	// Session lifecycle column (added when archival replaced deletion)
	{"sessions", "state", "TEXT NOT NULL DEFAULT 'active'"},
	// Branch dirty flag (added with worktree state caching)
	{"branch_context", "dirty", "INTEGER NOT NULL DEFAULT 0"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	logging.StoreDebug("Running schema migrations (%d pending)", len(pendingMigrations))

	appliedCount := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := db.Exec(query); err != nil {
			// Column may already exist in a different form; don't fail startup.
			logging.Get(logging.CategoryStore).Warn("Migration failed (may already exist): %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		appliedCount++
	}

	if appliedCount > 0 {
		logging.Store("Applied %d schema migrations", appliedCount)
	}
	return nil
}

// tableExists checks whether a table is present in the database.
func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ?",
		table,
	).Scan(&name)
	return err == nil
}

// columnExists checks whether a column is present on a table.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
