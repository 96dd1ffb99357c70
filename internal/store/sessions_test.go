package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ahmedaymanzekry/codex-belya/internal/store"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// TestMain ensures no goroutines leak during store tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	session, err := s.CreateSession("voice work")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, types.PolicyNever, session.Policy)
	assert.Equal(t, types.DefaultModel, session.Model)
	assert.Equal(t, types.SessionActive, session.State)

	got, err := s.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "voice work", got.Name)

	require.NoError(t, s.RenameSession(session.ID, "feature work"))
	require.NoError(t, s.SetBranch(session.ID, "feature/quota"))
	require.NoError(t, s.SetPolicy(session.ID, types.PolicyOnRequest))
	require.NoError(t, s.SetModel(session.ID, "gpt-4o"))

	got, err = s.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "feature work", got.Name)
	assert.Equal(t, "feature/quota", got.Branch)
	assert.Equal(t, types.PolicyOnRequest, got.Policy)
	assert.Equal(t, "gpt-4o", got.Model)
}

func TestSessionValidation(t *testing.T) {
	s := newTestStore(t)

	session, err := s.CreateSession("")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Name, "empty name gets a default")

	assert.ErrorIs(t, s.RenameSession(session.ID, ""), store.ErrEmptyName)
	assert.Error(t, s.SetPolicy(session.ID, "on-failure"))
	assert.Error(t, s.SetModel(session.ID, "clippy-9000"))

	_, err = s.GetSession("missing")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.ErrorIs(t, s.RenameSession("missing", "x"), store.ErrSessionNotFound)
}

func TestArchiveSession(t *testing.T) {
	s := newTestStore(t)

	session, err := s.CreateSession("to close")
	require.NoError(t, err)

	require.NoError(t, s.ArchiveSession(session.ID))

	got, err := s.GetSession(session.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived())

	// Archived sessions reject further mutation.
	assert.ErrorIs(t, s.RenameSession(session.ID, "nope"), store.ErrSessionArchived)
	assert.ErrorIs(t, s.SetBranch(session.ID, "b"), store.ErrSessionArchived)

	// Archive again is a no-op, never a delete.
	require.NoError(t, s.ArchiveSession(session.ID))
	_, err = s.GetSession(session.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, s.ArchiveSession("missing"), store.ErrSessionNotFound)
}

func TestListSessions_MostRecentFirst(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateSession("first")
	require.NoError(t, err)
	second, err := s.CreateSession("second")
	require.NoError(t, err)

	// Touch the first so it becomes the most recently updated.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.SetBranch(first.ID, "main"))

	sessions, err := s.ListSessions(10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)
	assert.Equal(t, second.ID, sessions[1].ID)

	page, err := s.ListSessions(1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)
}

func TestEnsureSession(t *testing.T) {
	s := newTestStore(t)

	created, err := s.EnsureSession("sess-resume", "resumed")
	require.NoError(t, err)
	assert.Equal(t, "sess-resume", created.ID)

	again, err := s.EnsureSession("sess-resume", "different name")
	require.NoError(t, err)
	assert.Equal(t, "resumed", again.Name, "existing session is returned untouched")
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	session, err := s.CreateSession("durable")
	require.NoError(t, err)
	require.NoError(t, s.SetBranch(session.ID, "main"))
	require.NoError(t, s.Close())

	s2, err := store.NewStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Name)
	assert.Equal(t, "main", got.Branch)
}

func TestBranchContext(t *testing.T) {
	s := newTestStore(t)

	session, err := s.CreateSession("git work")
	require.NoError(t, err)

	_, err = s.GetBranchContext(session.ID)
	assert.ErrorIs(t, err, store.ErrBranchContextNotFound)

	require.NoError(t, s.UpsertBranchContext(session.ID, types.BranchOutcome{Branch: "main", Dirty: false}))
	require.NoError(t, s.UpsertBranchContext(session.ID, types.BranchOutcome{Branch: "feature/x", Dirty: true}))

	ctx, err := s.GetBranchContext(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "feature/x", ctx.Branch)
	assert.True(t, ctx.Dirty)
	assert.False(t, ctx.LastSync.IsZero())
}
