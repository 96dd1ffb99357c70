// Package types holds the shared domain records for the Belya supervisor:
// sessions, tool-call history entries, branch context, and router results.
package types

import (
	"time"
)

// =============================================================================
// SESSION TYPES AND CONSTANTS
// =============================================================================

// SessionState defines the lifecycle state of a session.
type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionArchived SessionState = "archived" // sessions are archived, never hard-deleted
)

// ApprovalPolicy controls gating of risky specialist tools.
type ApprovalPolicy string

const (
	// PolicyNever auto-approves nothing; risky actions are denied. Default.
	PolicyNever ApprovalPolicy = "never"

	// PolicyOnRequest requires an explicit one-time confirmation per risky action.
	PolicyOnRequest ApprovalPolicy = "on-request"

	// PolicyAlways lets risky actions proceed without confirmation.
	PolicyAlways ApprovalPolicy = "always"
)

// AvailableApprovalPolicies lists the accepted policy-change targets.
var AvailableApprovalPolicies = []ApprovalPolicy{PolicyNever, PolicyOnRequest, PolicyAlways}

// ValidApprovalPolicy reports whether p is a recognized policy value.
func ValidApprovalPolicy(p string) bool {
	for _, candidate := range AvailableApprovalPolicies {
		if string(candidate) == p {
			return true
		}
	}
	return false
}

// AvailableModels lists the model identifiers a session may select.
var AvailableModels = []string{
	"gpt-5-codex", "gpt-5", "gpt-4.1", "gpt-4.1-mini", "gpt-4o", "gpt-4o-mini",
}

// ValidModel reports whether model is a recognized selection.
func ValidModel(model string) bool {
	for _, candidate := range AvailableModels {
		if candidate == model {
			return true
		}
	}
	return false
}

// DefaultModel is the model selection for new sessions.
const DefaultModel = "gpt-5-codex"

// Session is one conversational work unit.
type Session struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Branch    string         `json:"branch"`
	Policy    ApprovalPolicy `json:"policy"`
	Model     string         `json:"model"`
	State     SessionState   `json:"state"`
}

// Archived reports whether the session has been closed or superseded.
func (s *Session) Archived() bool {
	return s.State == SessionArchived
}

// =============================================================================
// TOOL CALL HISTORY
// =============================================================================

// ToolCallRecord is an immutable log entry for one completed tool invocation.
// Records are never mutated; they are pruned only by explicit compaction.
type ToolCallRecord struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id"`
	Specialist    string         `json:"specialist"`
	Tool          string         `json:"tool"`
	Input         map[string]any `json:"input,omitempty"`
	ResultSummary string         `json:"result_summary,omitempty"`
	ErrSummary    string         `json:"err_summary,omitempty"`
	TokenCost     *int64         `json:"token_cost,omitempty"` // nil when the specialist reported none
	CreatedAt     time.Time      `json:"created_at"`

	// Compaction summary fields. A compacted record stands in for
	// CompactedCount pruned raw records and carries their aggregates.
	Compacted            bool     `json:"compacted,omitempty"`
	CompactedCount       int      `json:"compacted_count,omitempty"`
	CompactedSpecialists []string `json:"compacted_specialists,omitempty"`
}

// =============================================================================
// BRANCH CONTEXT
// =============================================================================

// BranchContext caches the last-known branch/worktree state per session.
// It is refreshed from specialist git outcomes, never queried live.
type BranchContext struct {
	SessionID string    `json:"session_id"`
	Branch    string    `json:"branch"`
	Dirty     bool      `json:"dirty"`
	LastSync  time.Time `json:"last_sync"`
}

// BranchOutcome is the structured result a git operation reports back.
type BranchOutcome struct {
	Branch string `json:"branch"`
	Dirty  bool   `json:"dirty"`
}

// =============================================================================
// ROUTER RESULT
// =============================================================================

// ThresholdAlert reports a quota threshold newly crossed by a usage event.
type ThresholdAlert struct {
	WindowKind string  `json:"window_kind"`
	Threshold  int     `json:"threshold"` // percent of capacity
	Percent    float64 `json:"percent"`   // actual utilization at alert time
	Message    string  `json:"message"`   // voice-ready text
}

// PendingConfirmation describes a risky action waiting for user approval.
type PendingConfirmation struct {
	ActionID   string `json:"action_id"`
	Specialist string `json:"specialist"`
	Tool       string `json:"tool"`
}

// Result is what the Router hands back to the voice/transport layer:
// success text, error explanation, or a confirmation prompt, plus any
// newly crossed quota thresholds to announce.
type Result struct {
	Text       string               `json:"text"`
	Specialist string               `json:"specialist,omitempty"`
	Tool       string               `json:"tool,omitempty"`
	TokenCost  *int64               `json:"token_cost,omitempty"`
	Failed     bool                 `json:"failed,omitempty"` // specialist failure, already translated
	Alerts     []ThresholdAlert     `json:"alerts,omitempty"`
	Pending    *PendingConfirmation `json:"pending,omitempty"`
	Branch     *BranchOutcome       `json:"branch,omitempty"`
}
