package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// =============================================================================
// SESSION CRUD
// =============================================================================

// CreateSession creates a new active session with a generated id.
// An empty name gets a timestamp-derived default.
func (s *Store) CreateSession(name string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if name == "" {
		name = "session-" + now.Format("20060102-150405")
	}

	session := &types.Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Policy:    types.PolicyNever,
		Model:     types.DefaultModel,
		State:     types.SessionActive,
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, name, created_at, updated_at, branch, policy, model, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Name, session.CreatedAt, session.UpdatedAt,
		session.Branch, string(session.Policy), session.Model, string(session.State),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create session %s: %v", session.ID, err)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logging.Session("Created session %s (%s)", session.ID, session.Name)
	return session, nil
}

// EnsureSession returns the session with the given id, creating it if missing.
// Used at startup to resume a previously announced session id.
func (s *Store) EnsureSession(id, name string) (*types.Session, error) {
	existing, err := s.GetSession(id)
	if err == nil {
		return existing, nil
	}
	if err != ErrSessionNotFound {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if name == "" {
		name = "session-" + now.Format("20060102-150405")
	}
	session := &types.Session{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Policy:    types.PolicyNever,
		Model:     types.DefaultModel,
		State:     types.SessionActive,
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, name, created_at, updated_at, branch, policy, model, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Name, session.CreatedAt, session.UpdatedAt,
		session.Branch, string(session.Policy), session.Model, string(session.State),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure session: %w", err)
	}

	logging.Session("Ensured session %s (%s)", session.ID, session.Name)
	return session, nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSessionLocked(id)
}

func (s *Store) getSessionLocked(id string) (*types.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, name, created_at, updated_at, branch, policy, model, state
		 FROM sessions WHERE id = ?`,
		id,
	)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*types.Session, error) {
	var session types.Session
	var policy, state string
	err := row.Scan(
		&session.ID, &session.Name, &session.CreatedAt, &session.UpdatedAt,
		&session.Branch, &policy, &session.Model, &state,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	session.Policy = types.ApprovalPolicy(policy)
	session.State = types.SessionState(state)
	return &session, nil
}

// ListSessions returns sessions ordered most recently updated first.
func (s *Store) ListSessions(limit, offset int) ([]*types.Session, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListSessions")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(
		`SELECT id, name, created_at, updated_at, branch, policy, model, state
		 FROM sessions
		 ORDER BY updated_at DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to list sessions: %v", err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var session types.Session
		var policy, state string
		if err := rows.Scan(
			&session.ID, &session.Name, &session.CreatedAt, &session.UpdatedAt,
			&session.Branch, &policy, &session.Model, &state,
		); err != nil {
			continue
		}
		session.Policy = types.ApprovalPolicy(policy)
		session.State = types.SessionState(state)
		sessions = append(sessions, &session)
	}

	logging.StoreDebug("Listed %d sessions (limit=%d offset=%d)", len(sessions), limit, offset)
	return sessions, nil
}

// RenameSession sets the human-readable name of a session.
func (s *Store) RenameSession(id, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return s.updateSessionField(id, "name", name)
}

// SetBranch records the active branch name for a session.
func (s *Store) SetBranch(id, branch string) error {
	return s.updateSessionField(id, "branch", branch)
}

// SetPolicy sets the approval policy for a session.
func (s *Store) SetPolicy(id string, policy types.ApprovalPolicy) error {
	if !types.ValidApprovalPolicy(string(policy)) {
		return fmt.Errorf("unknown approval policy %q", policy)
	}
	return s.updateSessionField(id, "policy", string(policy))
}

// SetModel sets the selected model identifier for a session.
func (s *Store) SetModel(id, model string) error {
	if !types.ValidModel(model) {
		return fmt.Errorf("unknown model %q", model)
	}
	return s.updateSessionField(id, "model", model)
}

// ArchiveSession marks a session archived. Sessions are never hard-deleted.
// Archiving an already archived session is a no-op.
func (s *Store) ArchiveSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`,
		string(types.SessionArchived), now, id,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to archive session %s: %v", id, err)
		return fmt.Errorf("failed to archive session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrSessionNotFound
	}

	logging.Session("Archived session %s", id)
	return nil
}

// updateSessionField applies a single-column update inside a transaction,
// rejecting writes to archived sessions. A rename, branch update, or policy
// change either fully commits or has no effect.
func (s *Store) updateSessionField(id, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var state string
	err = tx.QueryRow(`SELECT state FROM sessions WHERE id = ?`, id).Scan(&state)
	if err == sql.ErrNoRows {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read session state: %w", err)
	}
	if types.SessionState(state) == types.SessionArchived {
		return ErrSessionArchived
	}

	now := time.Now().UTC()
	query := fmt.Sprintf("UPDATE sessions SET %s = ?, updated_at = ? WHERE id = ?", column)
	if _, err := tx.Exec(query, value, now, id); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to update session %s.%s: %v", id, column, err)
		return fmt.Errorf("failed to update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session update: %w", err)
	}

	logging.SessionDebug("Updated session %s: %s=%s", id, column, value)
	return nil
}
