// Package policy implements the approval gate for risky specialist tools.
// Each session carries one of three approval policies; under on-request a
// single pending-confirmation slot holds the blocked action until the user
// confirms or cancels it.
package policy

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// Decision is the gate's verdict on a tool call.
type Decision int

const (
	// Allow lets the call proceed immediately.
	Allow Decision = iota

	// Deny blocks the call outright (risky tool under the never policy).
	Deny

	// NeedsConfirmation parks the call in the session's pending slot.
	NeedsConfirmation
)

// PendingAction is a risky call held in the confirmation slot, with
// everything needed to replay it once confirmed.
type PendingAction struct {
	types.PendingConfirmation
	Args map[string]any
}

// Gate holds the per-session pending-confirmation slots. Policy state
// itself lives on the session row; the gate only reads it.
type Gate struct {
	mu      sync.Mutex
	pending map[string]*PendingAction
}

// NewGate creates an empty approval gate.
func NewGate() *Gate {
	return &Gate{pending: make(map[string]*PendingAction)}
}

// Check applies the session's approval policy to a tool call. Non-risky
// tools always pass. For a NeedsConfirmation verdict the returned action
// has been placed in the session's slot; a second risky request while one
// is pending fails with ErrConfirmationInProgress instead of queueing.
func (g *Gate) Check(session *types.Session, specialist, tool string, risky bool, args map[string]any) (Decision, *PendingAction, error) {
	if !risky {
		return Allow, nil, nil
	}

	switch session.Policy {
	case types.PolicyAlways:
		logging.PolicyDebug("Auto-approved risky tool: session=%s tool=%s", session.ID, tool)
		return Allow, nil, nil

	case types.PolicyNever:
		logging.Policy("Denied risky tool under never policy: session=%s tool=%s", session.ID, tool)
		return Deny, nil, nil

	case types.PolicyOnRequest:
		g.mu.Lock()
		defer g.mu.Unlock()

		if held := g.pending[session.ID]; held != nil {
			return Deny, nil, fmt.Errorf("%w: %s awaits confirmation", ErrConfirmationInProgress, held.Tool)
		}

		action := &PendingAction{
			PendingConfirmation: types.PendingConfirmation{
				ActionID:   uuid.NewString(),
				Specialist: specialist,
				Tool:       tool,
			},
			Args: args,
		}
		g.pending[session.ID] = action
		logging.Policy("Confirmation pending: session=%s tool=%s action=%s", session.ID, tool, action.ActionID)
		return NeedsConfirmation, action, nil

	default:
		return Deny, nil, fmt.Errorf("unknown approval policy %q", session.Policy)
	}
}

// Confirm releases the session's pending action for execution. The action
// ID must name the held action; an empty ID confirms whatever is pending.
func (g *Gate) Confirm(sessionID, actionID string) (*PendingAction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	held := g.pending[sessionID]
	if held == nil {
		return nil, ErrNoPendingConfirmation
	}
	if actionID != "" && actionID != held.ActionID {
		return nil, fmt.Errorf("%w: pending %s, got %s", ErrConfirmationMismatch, held.ActionID, actionID)
	}

	delete(g.pending, sessionID)
	logging.Policy("Confirmed pending action: session=%s tool=%s action=%s", sessionID, held.Tool, held.ActionID)
	return held, nil
}

// Cancel discards the session's pending action without executing it.
func (g *Gate) Cancel(sessionID string) (*PendingAction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	held := g.pending[sessionID]
	if held == nil {
		return nil, ErrNoPendingConfirmation
	}
	delete(g.pending, sessionID)
	logging.Policy("Cancelled pending action: session=%s tool=%s", sessionID, held.Tool)
	return held, nil
}

// Pending returns the session's held action, or nil.
func (g *Gate) Pending(sessionID string) *PendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending[sessionID]
}

// Drop clears any pending slot for a session, used when the session is
// archived.
func (g *Gate) Drop(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, sessionID)
}
