package specialists

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/store"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

type fakeCodegen struct {
	lastModel  string
	lastPrompt string
	result     *TaskResult
	err        error
}

func (f *fakeCodegen) SendTask(ctx context.Context, model, prompt string) (*TaskResult, error) {
	f.lastModel = model
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCodegen) TaskStatus(ctx context.Context) (string, error) {
	return "Last task completed successfully.", nil
}

type fakeGit struct {
	branch    string
	dirty     bool
	pushed    string
	discarded bool
	err       error
}

func (f *fakeGit) CurrentBranch(ctx context.Context) (string, bool, error) {
	return f.branch, f.dirty, f.err
}
func (f *fakeGit) CreateBranch(ctx context.Context, name string) error {
	f.branch = name
	return f.err
}
func (f *fakeGit) SwitchBranch(ctx context.Context, name string) error {
	f.branch = name
	return f.err
}
func (f *fakeGit) Push(ctx context.Context, remote string) error {
	f.pushed = remote
	return f.err
}
func (f *fakeGit) DiscardChanges(ctx context.Context) error {
	f.discarded = true
	f.dirty = false
	return f.err
}

type fakeSearch struct {
	hits []string
}

func (f *fakeSearch) Search(ctx context.Context, query string) ([]string, error) {
	return f.hits, nil
}

func TestCodexSpecialist_SendTask(t *testing.T) {
	client := &fakeCodegen{result: &TaskResult{Text: "done", TokensUsed: 420}}
	desc := NewCodexSpecialist(client)

	inv, err := desc.Invoke(context.Background(), "send_task", map[string]any{
		"prompt": "add retries",
		"model":  "gpt-4.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "done", inv.Text)
	require.NotNil(t, inv.TokenCost)
	assert.Equal(t, int64(420), *inv.TokenCost)
	assert.Equal(t, "gpt-4.1", client.lastModel)
	assert.Equal(t, "add retries", client.lastPrompt)
}

func TestCodexSpecialist_DefaultsModel(t *testing.T) {
	client := &fakeCodegen{result: &TaskResult{Text: "ok"}}
	desc := NewCodexSpecialist(client)

	_, err := desc.Invoke(context.Background(), "send_task", map[string]any{"prompt": "x"})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultModel, client.lastModel)
}

func TestCodexSpecialist_PropagatesFailure(t *testing.T) {
	client := &fakeCodegen{err: errors.New("service unavailable")}
	desc := NewCodexSpecialist(client)

	_, err := desc.Invoke(context.Background(), "send_task", map[string]any{"prompt": "x"})
	assert.Error(t, err)
}

func TestGitSpecialist_BranchOutcomes(t *testing.T) {
	client := &fakeGit{branch: "main", dirty: true}
	desc := NewGitSpecialist(client)
	ctx := context.Background()

	inv, err := desc.Invoke(ctx, "check_current_branch", nil)
	require.NoError(t, err)
	assert.Contains(t, inv.Text, "main")
	assert.Contains(t, inv.Text, "uncommitted")
	require.NotNil(t, inv.Branch)
	assert.Equal(t, "main", inv.Branch.Branch)
	assert.True(t, inv.Branch.Dirty)

	inv, err = desc.Invoke(ctx, "create_branch", map[string]any{"name": "feature/x"})
	require.NoError(t, err)
	require.NotNil(t, inv.Branch)
	assert.Equal(t, "feature/x", inv.Branch.Branch)

	inv, err = desc.Invoke(ctx, "push_branch", nil)
	require.NoError(t, err)
	assert.Equal(t, "origin", client.pushed)
	assert.Nil(t, inv.Branch)

	inv, err = desc.Invoke(ctx, "discard_changes", nil)
	require.NoError(t, err)
	assert.True(t, client.discarded)
	require.NotNil(t, inv.Branch)
	assert.False(t, inv.Branch.Dirty)
}

func TestResearchSpecialist(t *testing.T) {
	desc := NewResearchSpecialist(&fakeSearch{hits: []string{"a.go", "b.go", "c.go", "d.go"}})

	inv, err := desc.Invoke(context.Background(), "search_repository", map[string]any{"query": "retry"})
	require.NoError(t, err)
	assert.Contains(t, inv.Text, "4 matches")
	assert.Contains(t, inv.Text, "a.go")
	assert.NotContains(t, inv.Text, "d.go", "spoken results are capped")

	desc = NewResearchSpecialist(&fakeSearch{})
	inv, err = desc.Invoke(context.Background(), "search_repository", map[string]any{"query": "nope"})
	require.NoError(t, err)
	assert.Contains(t, inv.Text, "Nothing in the repository")
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSessionSpecialist(t *testing.T) {
	st := newTestStore(t)
	desc := NewSessionSpecialist(st)
	ctx := context.Background()

	sess, err := st.CreateSession("voice")
	require.NoError(t, err)
	args := func(extra map[string]any) map[string]any {
		m := map[string]any{"session_id": sess.ID}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}

	inv, err := desc.Invoke(ctx, "rename_session", args(map[string]any{"name": "sprint"}))
	require.NoError(t, err)
	assert.Contains(t, inv.Text, "sprint")

	_, err = desc.Invoke(ctx, "set_approval_policy", args(map[string]any{"policy": "on-request"}))
	require.NoError(t, err)

	_, err = desc.Invoke(ctx, "set_model", args(map[string]any{"model": "gpt-4.1"}))
	require.NoError(t, err)

	inv, err = desc.Invoke(ctx, "session_status", args(nil))
	require.NoError(t, err)
	assert.Contains(t, inv.Text, "sprint")
	assert.Contains(t, inv.Text, "on-request")
	assert.Contains(t, inv.Text, "gpt-4.1")

	_, err = desc.Invoke(ctx, "close_session", args(nil))
	require.NoError(t, err)
	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived())

	// Unknown session IDs surface the store sentinel.
	_, err = desc.Invoke(ctx, "session_status", map[string]any{"session_id": "missing"})
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestStartSession_ArchivesInvokingSession(t *testing.T) {
	st := newTestStore(t)
	desc := NewSessionSpecialist(st)
	ctx := context.Background()

	prior, err := st.CreateSession("old")
	require.NoError(t, err)

	inv, err := desc.Invoke(ctx, "start_session", map[string]any{
		"session_id": prior.ID,
		"name":       "new",
	})
	require.NoError(t, err)
	assert.Contains(t, inv.Text, "archived the previous")

	got, err := st.GetSession(prior.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived(), "starting a new session supersedes the old one")

	// Without an invoking session there is nothing to supersede.
	inv, err = desc.Invoke(ctx, "start_session", map[string]any{"name": "solo"})
	require.NoError(t, err)
	assert.Contains(t, inv.Text, "solo")
	assert.NotContains(t, inv.Text, "archived")
}

func TestRegisterAll(t *testing.T) {
	st := newTestStore(t)
	reg := registry.NewRegistry()

	err := RegisterAll(reg, Deps{
		Codegen: &fakeCodegen{result: &TaskResult{Text: "ok"}},
		Git:     &fakeGit{branch: "main"},
		Search:  &fakeSearch{},
		Store:   st,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"codex", "git", "research", "session"}, reg.Names())

	// Partial deps register a partial catalog.
	reg = registry.NewRegistry()
	err = RegisterAll(reg, Deps{Git: &fakeGit{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"git"}, reg.Names())
}
