package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

func session(policy types.ApprovalPolicy) *types.Session {
	return &types.Session{ID: "s1", Policy: policy}
}

func TestCheck_NonRiskyAlwaysPasses(t *testing.T) {
	gate := NewGate()

	for _, policy := range types.AvailableApprovalPolicies {
		decision, pending, err := gate.Check(session(policy), "git", "check_current_branch", false, nil)
		require.NoError(t, err)
		assert.Equal(t, Allow, decision, "policy %s", policy)
		assert.Nil(t, pending)
	}
}

func TestCheck_NeverDeniesRisky(t *testing.T) {
	gate := NewGate()

	decision, pending, err := gate.Check(session(types.PolicyNever), "git", "push_branch", true, nil)
	require.NoError(t, err)
	assert.Equal(t, Deny, decision)
	assert.Nil(t, pending)
}

func TestCheck_AlwaysApprovesRisky(t *testing.T) {
	gate := NewGate()

	decision, _, err := gate.Check(session(types.PolicyAlways), "git", "push_branch", true, nil)
	require.NoError(t, err)
	assert.Equal(t, Allow, decision)
}

func TestCheck_OnRequestParksAction(t *testing.T) {
	gate := NewGate()
	args := map[string]any{"remote": "origin"}

	decision, pending, err := gate.Check(session(types.PolicyOnRequest), "git", "push_branch", true, args)
	require.NoError(t, err)
	assert.Equal(t, NeedsConfirmation, decision)
	require.NotNil(t, pending)
	assert.NotEmpty(t, pending.ActionID)
	assert.Equal(t, "git", pending.Specialist)
	assert.Equal(t, "push_branch", pending.Tool)
	assert.Equal(t, args, pending.Args)

	held := gate.Pending("s1")
	require.NotNil(t, held)
	assert.Equal(t, pending.ActionID, held.ActionID)
}

func TestCheck_SecondRiskyRequestFails(t *testing.T) {
	gate := NewGate()

	_, _, err := gate.Check(session(types.PolicyOnRequest), "git", "push_branch", true, nil)
	require.NoError(t, err)

	// The slot holds one action; a new risky request fails rather than
	// queueing behind it.
	_, _, err = gate.Check(session(types.PolicyOnRequest), "git", "discard_changes", true, nil)
	assert.ErrorIs(t, err, ErrConfirmationInProgress)

	// Non-risky calls are unaffected by the pending slot.
	decision, _, err := gate.Check(session(types.PolicyOnRequest), "git", "check_current_branch", false, nil)
	require.NoError(t, err)
	assert.Equal(t, Allow, decision)
}

func TestConfirm(t *testing.T) {
	gate := NewGate()

	_, pending, err := gate.Check(session(types.PolicyOnRequest), "git", "push_branch", true, nil)
	require.NoError(t, err)

	// Wrong action ID leaves the slot occupied.
	_, err = gate.Confirm("s1", "bogus")
	assert.ErrorIs(t, err, ErrConfirmationMismatch)
	assert.NotNil(t, gate.Pending("s1"))

	released, err := gate.Confirm("s1", pending.ActionID)
	require.NoError(t, err)
	assert.Equal(t, "push_branch", released.Tool)
	assert.Nil(t, gate.Pending("s1"), "slot frees after confirmation")

	// Confirming again has nothing to release.
	_, err = gate.Confirm("s1", pending.ActionID)
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestConfirm_EmptyIDConfirmsPending(t *testing.T) {
	gate := NewGate()

	_, _, err := gate.Check(session(types.PolicyOnRequest), "git", "push_branch", true, nil)
	require.NoError(t, err)

	released, err := gate.Confirm("s1", "")
	require.NoError(t, err)
	assert.Equal(t, "push_branch", released.Tool)
}

func TestCancelAndDrop(t *testing.T) {
	gate := NewGate()

	_, err := gate.Cancel("s1")
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)

	_, _, err = gate.Check(session(types.PolicyOnRequest), "git", "push_branch", true, nil)
	require.NoError(t, err)

	cancelled, err := gate.Cancel("s1")
	require.NoError(t, err)
	assert.Equal(t, "push_branch", cancelled.Tool)
	assert.Nil(t, gate.Pending("s1"))

	// Drop clears silently even when nothing is pending.
	gate.Drop("s1")

	_, _, err = gate.Check(session(types.PolicyOnRequest), "git", "push_branch", true, nil)
	require.NoError(t, err)
	gate.Drop("s1")
	assert.Nil(t, gate.Pending("s1"))
}
