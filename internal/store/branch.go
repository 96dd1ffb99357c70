package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// =============================================================================
// BRANCH CONTEXT (cached worktree state per session)
// =============================================================================

// UpsertBranchContext overwrites the cached branch state for a session.
// Called on every git-outcome report from a specialist; the core never
// queries the worktree live.
func (s *Store) UpsertBranchContext(sessionID string, outcome types.BranchOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	dirty := 0
	if outcome.Dirty {
		dirty = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO branch_context (session_id, branch, dirty, last_sync)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   branch = excluded.branch,
		   dirty = excluded.dirty,
		   last_sync = excluded.last_sync`,
		sessionID, outcome.Branch, dirty, now,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert branch context for %s: %v", sessionID, err)
		return fmt.Errorf("failed to upsert branch context: %w", err)
	}

	logging.StoreDebug("Branch context updated: session=%s branch=%s dirty=%v", sessionID, outcome.Branch, outcome.Dirty)
	return nil
}

// GetBranchContext returns the last-known branch state for a session.
func (s *Store) GetBranchContext(sessionID string) (*types.BranchContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ctx types.BranchContext
	var dirty int
	err := s.db.QueryRow(
		`SELECT session_id, branch, dirty, last_sync FROM branch_context WHERE session_id = ?`,
		sessionID,
	).Scan(&ctx.SessionID, &ctx.Branch, &dirty, &ctx.LastSync)
	if err == sql.ErrNoRows {
		return nil, ErrBranchContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read branch context: %w", err)
	}
	ctx.Dirty = dirty != 0
	return &ctx, nil
}
