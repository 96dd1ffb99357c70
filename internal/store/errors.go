package store

import "errors"

// Session store errors.
var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionArchived is returned when mutating an archived session.
	ErrSessionArchived = errors.New("session is archived")

	// ErrEmptyName is returned when renaming a session to an empty name.
	ErrEmptyName = errors.New("session name cannot be empty")

	// ErrWindowNotFound is returned when no persisted quota window exists
	// for the requested kind.
	ErrWindowNotFound = errors.New("quota window not found")

	// ErrBranchContextNotFound is returned when no branch context has been
	// reported for the session yet.
	ErrBranchContextNotFound = errors.New("branch context not found")
)
