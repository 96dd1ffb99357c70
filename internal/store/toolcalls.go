package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// =============================================================================
// TOOL CALL HISTORY (append, list, compaction)
// =============================================================================

// AppendToolCall records one completed tool invocation. Records are
// immutable once written; append semantics are at-most-once (no retry
// on storage failure, the caller surfaces the error instead).
func (s *Store) AppendToolCall(record *types.ToolCallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var inputJSON []byte
	if record.Input != nil {
		var err error
		inputJSON, err = json.Marshal(record.Input)
		if err != nil {
			return fmt.Errorf("failed to encode tool call input: %w", err)
		}
	}

	var tokenCost sql.NullInt64
	if record.TokenCost != nil {
		tokenCost = sql.NullInt64{Int64: *record.TokenCost, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO tool_calls
		 (id, session_id, specialist, tool, input, result_summary, err_summary, token_cost, compacted, compacted_count, compacted_specialists, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, NULL, ?)`,
		record.ID, record.SessionID, record.Specialist, record.Tool,
		string(inputJSON), record.ResultSummary, record.ErrSummary, tokenCost, record.CreatedAt,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to append tool call for session %s: %v", record.SessionID, err)
		return fmt.Errorf("failed to append tool call: %w", err)
	}

	logging.StoreDebug("Appended tool call: session=%s specialist=%s tool=%s", record.SessionID, record.Specialist, record.Tool)
	return nil
}

// ListToolCalls returns the most recent history entries for a session,
// newest first, compacted summary entries included.
func (s *Store) ListToolCalls(sessionID string, limit int) ([]*types.ToolCallRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListToolCalls")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, specialist, tool, input, result_summary, err_summary, token_cost,
		        compacted, compacted_count, compacted_specialists, created_at
		 FROM tool_calls
		 WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	var records []*types.ToolCallRecord
	for rows.Next() {
		record, err := scanToolCall(rows)
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	logging.StoreDebug("Listed %d tool calls for session=%s", len(records), sessionID)
	return records, nil
}

func scanToolCall(rows *sql.Rows) (*types.ToolCallRecord, error) {
	var record types.ToolCallRecord
	var inputJSON, specialistsJSON sql.NullString
	var tokenCost sql.NullInt64
	var compacted int

	err := rows.Scan(
		&record.ID, &record.SessionID, &record.Specialist, &record.Tool,
		&inputJSON, &record.ResultSummary, &record.ErrSummary, &tokenCost,
		&compacted, &record.CompactedCount, &specialistsJSON, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inputJSON.Valid && inputJSON.String != "" {
		_ = json.Unmarshal([]byte(inputJSON.String), &record.Input)
	}
	if tokenCost.Valid {
		record.TokenCost = &tokenCost.Int64
	}
	record.Compacted = compacted != 0
	if specialistsJSON.Valid && specialistsJSON.String != "" {
		_ = json.Unmarshal([]byte(specialistsJSON.String), &record.CompactedSpecialists)
	}
	return &record, nil
}

// Compact collapses tool-call history for a session into a single summarized
// entry once raw history exceeds the configured threshold, preserving
// cumulative token totals, the set of distinct specialists invoked, and the
// most recent retained raw records.
//
// Compact is idempotent: calling it twice with no new records between calls
// produces no further change. It never touches quota_windows.
func (s *Store) Compact(sessionID string) error {
	timer := logging.StartTimer(logging.CategoryStore, "Compact")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin compaction: %w", err)
	}
	defer tx.Rollback()

	var rawCount int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM tool_calls WHERE session_id = ? AND compacted = 0`,
		sessionID,
	).Scan(&rawCount)
	if err != nil {
		return fmt.Errorf("failed to count history: %w", err)
	}

	if rawCount <= s.compactMax {
		logging.StoreDebug("Compaction skipped: session=%s raw=%d max=%d", sessionID, rawCount, s.compactMax)
		return nil
	}

	// Everything older than the newest retain raw records gets pruned.
	rows, err := tx.Query(
		`SELECT id, specialist, token_cost, created_at
		 FROM tool_calls
		 WHERE session_id = ? AND compacted = 0
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT -1 OFFSET ?`,
		sessionID, s.compactRetain,
	)
	if err != nil {
		return fmt.Errorf("failed to select prunable history: %w", err)
	}

	var pruneIDs []string
	specialists := make(map[string]bool)
	var tokenTotal int64
	var prunedCount int
	var earliest time.Time

	for rows.Next() {
		var id, specialist string
		var tokenCost sql.NullInt64
		var createdAt time.Time
		if err := rows.Scan(&id, &specialist, &tokenCost, &createdAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan prunable record: %w", err)
		}
		pruneIDs = append(pruneIDs, id)
		specialists[specialist] = true
		if tokenCost.Valid {
			tokenTotal += tokenCost.Int64
		}
		prunedCount++
		if earliest.IsZero() || createdAt.Before(earliest) {
			earliest = createdAt
		}
	}
	rows.Close()

	if prunedCount == 0 {
		return nil
	}

	// Merge with a prior summary entry if one exists.
	var priorID string
	var priorTokens sql.NullInt64
	var priorCount int
	var priorSpecialistsJSON sql.NullString
	var priorCreated time.Time
	err = tx.QueryRow(
		`SELECT id, token_cost, compacted_count, compacted_specialists, created_at
		 FROM tool_calls
		 WHERE session_id = ? AND compacted = 1`,
		sessionID,
	).Scan(&priorID, &priorTokens, &priorCount, &priorSpecialistsJSON, &priorCreated)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read prior summary: %w", err)
	}
	if err == nil {
		if priorTokens.Valid {
			tokenTotal += priorTokens.Int64
		}
		prunedCount += priorCount
		if priorSpecialistsJSON.Valid && priorSpecialistsJSON.String != "" {
			var prior []string
			_ = json.Unmarshal([]byte(priorSpecialistsJSON.String), &prior)
			for _, name := range prior {
				specialists[name] = true
			}
		}
		if priorCreated.Before(earliest) {
			earliest = priorCreated
		}
		if _, err := tx.Exec(`DELETE FROM tool_calls WHERE id = ?`, priorID); err != nil {
			return fmt.Errorf("failed to replace prior summary: %w", err)
		}
	}

	names := make([]string, 0, len(specialists))
	for name := range specialists {
		names = append(names, name)
	}
	sort.Strings(names)
	specialistsJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to encode specialist set: %w", err)
	}

	// Delete the pruned raw rows.
	placeholders := strings.Repeat("?,", len(pruneIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(pruneIDs))
	for i, id := range pruneIDs {
		args[i] = id
	}
	if _, err := tx.Exec(
		fmt.Sprintf("DELETE FROM tool_calls WHERE id IN (%s)", placeholders),
		args...,
	); err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	summary := fmt.Sprintf("Compacted %d earlier tool calls across %d specialists.", prunedCount, len(names))
	if _, err := tx.Exec(
		`INSERT INTO tool_calls
		 (id, session_id, specialist, tool, input, result_summary, err_summary, token_cost, compacted, compacted_count, compacted_specialists, created_at)
		 VALUES (?, ?, ?, ?, NULL, ?, '', ?, 1, ?, ?, ?)`,
		uuid.NewString(), sessionID, "history", "compaction_summary",
		summary, tokenTotal, prunedCount, string(specialistsJSON), earliest,
	); err != nil {
		return fmt.Errorf("failed to write summary record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit compaction: %w", err)
	}

	logging.Store("Compacted session %s history: pruned=%d tokens=%d specialists=%v", sessionID, prunedCount, tokenTotal, names)
	return nil
}

// CompactAll runs compaction across every known session with bounded
// parallelism. Intended for maintenance from the CLI.
func (s *Store) CompactAll() error {
	s.mu.RLock()
	rows, err := s.db.Query(`SELECT id FROM sessions`)
	if err != nil {
		s.mu.RUnlock()
		return fmt.Errorf("failed to list sessions for compaction: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()
	s.mu.RUnlock()

	var eg errgroup.Group
	eg.SetLimit(4)
	for _, id := range ids {
		eg.Go(func() error {
			return s.Compact(id)
		})
	}
	return eg.Wait()
}

// SessionUsageTotal returns the cumulative token cost recorded for a
// session, raw records and compacted summaries combined.
func (s *Store) SessionUsageTotal(sessionID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total sql.NullInt64
	err := s.db.QueryRow(
		`SELECT SUM(token_cost) FROM tool_calls WHERE session_id = ?`,
		sessionID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}
