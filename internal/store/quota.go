package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
)

// =============================================================================
// QUOTA WINDOW PERSISTENCE
// =============================================================================
// Quota accounting is independent of tool-call history retention: compaction
// never touches these rows.

// QuotaWindowRow is the persisted form of one rolling quota window.
type QuotaWindowRow struct {
	Kind            string
	WindowStart     time.Time
	Accumulated     int64
	FiredThresholds []int
}

// LoadQuotaWindow reads the persisted window state for a kind.
// Returns ErrWindowNotFound for kinds that never recorded usage.
func (s *Store) LoadQuotaWindow(kind string) (*QuotaWindowRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row QuotaWindowRow
	var firedJSON string
	err := s.db.QueryRow(
		`SELECT kind, window_start, accumulated, fired_thresholds
		 FROM quota_windows WHERE kind = ?`,
		kind,
	).Scan(&row.Kind, &row.WindowStart, &row.Accumulated, &firedJSON)
	if err == sql.ErrNoRows {
		return nil, ErrWindowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quota window: %w", err)
	}

	if firedJSON != "" {
		if err := json.Unmarshal([]byte(firedJSON), &row.FiredThresholds); err != nil {
			logging.Get(logging.CategoryStore).Warn("Corrupt fired_thresholds for window %s: %v", kind, err)
			row.FiredThresholds = nil
		}
	}
	return &row, nil
}

// SaveQuotaWindow upserts the window state for a kind.
func (s *Store) SaveQuotaWindow(row *QuotaWindowRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fired := row.FiredThresholds
	if fired == nil {
		fired = []int{}
	}
	firedJSON, err := json.Marshal(fired)
	if err != nil {
		return fmt.Errorf("failed to encode fired thresholds: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO quota_windows (kind, window_start, accumulated, fired_thresholds)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET
		   window_start = excluded.window_start,
		   accumulated = excluded.accumulated,
		   fired_thresholds = excluded.fired_thresholds`,
		row.Kind, row.WindowStart, row.Accumulated, string(firedJSON),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to save quota window %s: %v", row.Kind, err)
		return fmt.Errorf("failed to save quota window: %w", err)
	}

	logging.StoreDebug("Saved quota window: kind=%s accumulated=%d fired=%v", row.Kind, row.Accumulated, row.FiredThresholds)
	return nil
}
