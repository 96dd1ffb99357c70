// Package supervisor implements the router that turns user intents into
// specialist invocations: resolution, approval gating, invocation with
// history and quota bookkeeping, and error translation for the voice layer.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/policy"
	"github.com/ahmedaymanzekry/codex-belya/internal/quota"
	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/store"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// Classifier is the optional fallback for intents the registry cannot
// resolve declaratively: it picks a tool name from the capability menu, or
// returns empty when nothing fits.
type Classifier interface {
	Classify(ctx context.Context, intent string, caps []registry.Capability) (string, error)
}

// Router dispatches one intent at a time per session. Different sessions
// proceed concurrently; within a session, history appends happen in
// intent-arrival order.
type Router struct {
	store      *store.Store
	registry   *registry.Registry
	gate       *policy.Gate
	tracker    *quota.Tracker // nil disables quota bookkeeping
	classifier Classifier     // nil disables the fallback
	translate  Translator
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRouter wires the router to its collaborators. A nil tracker disables
// quota accounting and threshold alerts.
func NewRouter(st *store.Store, reg *registry.Registry, gate *policy.Gate, tracker *quota.Tracker) *Router {
	return &Router{
		store:     st,
		registry:  reg,
		gate:      gate,
		tracker:   tracker,
		translate: DefaultTranslator,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetTranslator replaces the error translator.
func (r *Router) SetTranslator(t Translator) {
	if t != nil {
		r.translate = t
	}
}

// SetClassifier enables the model-backed fallback for free-text intents.
func (r *Router) SetClassifier(c Classifier) {
	r.classifier = c
}

// sessionLock returns the serialization lock for one session.
func (r *Router) sessionLock(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[sessionID] = lock
	}
	return lock
}

// HandleIntent routes one intent for a session. Resolution failures return
// ErrUnhandledIntent with no side effects; specialist failures come back as
// a translated Result with Failed set, never as a raw error.
func (r *Router) HandleIntent(ctx context.Context, sessionID, intent string, payload map[string]any) (*types.Result, error) {
	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := r.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Archived() {
		return nil, store.ErrSessionArchived
	}

	match, err := r.registry.Resolve(intent)
	if err != nil {
		match = r.classify(ctx, intent)
		if match == nil {
			logging.Router("Unhandled intent: session=%s intent=%q", sessionID, intent)
			return nil, fmt.Errorf("%w: %q", ErrUnhandledIntent, intent)
		}
	}
	logging.RouterDebug("Resolved intent: session=%s specialist=%s tool=%s",
		sessionID, match.Specialist.Name, match.Tool.Name)

	args := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		args[k] = v
	}
	args["session_id"] = sessionID
	if _, ok := args["model"]; !ok {
		args["model"] = sess.Model
	}

	if err := registry.ValidateArgs(match.Tool, args); err != nil {
		return r.failed(match, err), nil
	}

	decision, pending, err := r.gate.Check(sess, match.Specialist.Name, match.Tool.Name, match.Tool.Risky, args)
	if err != nil {
		return r.failed(match, err), nil
	}
	switch decision {
	case policy.Deny:
		return &types.Result{
			Text: fmt.Sprintf("The approval policy is set to %s, so I won't run %s. Change the policy if you want risky actions.",
				sess.Policy, match.Tool.Name),
			Specialist: match.Specialist.Name,
			Tool:       match.Tool.Name,
		}, nil
	case policy.NeedsConfirmation:
		return &types.Result{
			Text: fmt.Sprintf("%s is a risky action. Say confirm to run it, or cancel to drop it.",
				match.Tool.Name),
			Specialist: match.Specialist.Name,
			Tool:       match.Tool.Name,
			Pending:    &pending.PendingConfirmation,
		}, nil
	}

	return r.execute(ctx, sess, match, args)
}

// ConfirmPending releases the session's pending risky action and executes
// it. An empty actionID confirms whatever is pending.
func (r *Router) ConfirmPending(ctx context.Context, sessionID, actionID string) (*types.Result, error) {
	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := r.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Archived() {
		r.gate.Drop(sessionID)
		return nil, store.ErrSessionArchived
	}

	action, err := r.gate.Confirm(sessionID, actionID)
	if err != nil {
		return &types.Result{Text: r.translate("", "", err), Failed: true}, nil
	}

	match, err := r.registry.ResolveTool(action.Tool)
	if err != nil {
		return &types.Result{Text: r.translate(action.Specialist, action.Tool, err), Failed: true}, nil
	}
	logging.Router("Executing confirmed action: session=%s tool=%s action=%s",
		sessionID, action.Tool, action.ActionID)
	return r.execute(ctx, sess, match, action.Args)
}

// CancelPending drops the session's pending risky action without running it.
func (r *Router) CancelPending(sessionID string) (*types.Result, error) {
	action, err := r.gate.Cancel(sessionID)
	if err != nil {
		return &types.Result{Text: r.translate("", "", err), Failed: true}, nil
	}
	return &types.Result{
		Text:       fmt.Sprintf("Cancelled %s.", action.Tool),
		Specialist: action.Specialist,
		Tool:       action.Tool,
	}, nil
}

// classify asks the fallback classifier to pick a declared tool for a
// free-text intent. Anything but an exact declared tool name is treated as
// no match; classification itself has no persistent side effects.
func (r *Router) classify(ctx context.Context, intent string) *registry.Match {
	if r.classifier == nil {
		return nil
	}

	tool, err := r.classifier.Classify(ctx, intent, r.registry.Capabilities())
	if err != nil || tool == "" {
		if err != nil {
			logging.Router("Classifier fallback failed: %v", err)
		}
		return nil
	}
	match, err := r.registry.ResolveTool(tool)
	if err != nil {
		logging.Router("Classifier picked unknown tool: %q", tool)
		return nil
	}
	logging.RouterDebug("Classifier resolved intent: tool=%s specialist=%s", tool, match.Specialist.Name)
	return match
}

// execute runs the specialist call as an in-flight invocation the router
// joins on, then applies history, branch, and quota bookkeeping. A session
// archived while the call was in flight has the completed result discarded.
func (r *Router) execute(ctx context.Context, sess *types.Session, match *registry.Match, args map[string]any) (*types.Result, error) {
	type outcome struct {
		inv *registry.Invocation
		err error
	}

	timer := logging.StartTimer(logging.CategoryRouter, match.Tool.Name)
	done := make(chan outcome, 1)
	go func() {
		inv, err := match.Specialist.Invoke(ctx, match.Tool.Name, args)
		done <- outcome{inv: inv, err: err}
	}()
	out := <-done
	timer.Stop()

	// The call completed; if the session was archived in the meantime its
	// result is discarded rather than applied.
	current, serr := r.store.GetSession(sess.ID)
	if serr == nil && current.Archived() && !archivesOwnSession(match.Tool.Name) {
		r.gate.Drop(sess.ID)
		logging.Router("Discarding result for archived session: session=%s tool=%s", sess.ID, match.Tool.Name)
		return &types.Result{
			Text:       "The session was archived while I was working, so I dropped the result.",
			Specialist: match.Specialist.Name,
			Tool:       match.Tool.Name,
		}, nil
	}

	record := &types.ToolCallRecord{
		SessionID:  sess.ID,
		Specialist: match.Specialist.Name,
		Tool:       match.Tool.Name,
		Input:      args,
		CreatedAt:  r.now(),
	}

	if out.err != nil {
		text := r.translate(match.Specialist.Name, match.Tool.Name, out.err)
		record.ErrSummary = out.err.Error()
		if err := r.store.AppendToolCall(record); err != nil {
			return r.storageFailed(match, err), nil
		}
		logging.Router("Specialist failed: session=%s tool=%s err=%v", sess.ID, match.Tool.Name, out.err)
		return &types.Result{
			Text:       text,
			Specialist: match.Specialist.Name,
			Tool:       match.Tool.Name,
			Failed:     true,
		}, nil
	}

	record.ResultSummary = out.inv.Text
	record.TokenCost = out.inv.TokenCost
	if err := r.store.AppendToolCall(record); err != nil {
		return r.storageFailed(match, err), nil
	}
	if err := r.store.Compact(sess.ID); err != nil {
		logging.Router("Compaction failed: session=%s err=%v", sess.ID, err)
	}

	if out.inv.Branch != nil {
		if err := r.store.SetBranch(sess.ID, out.inv.Branch.Branch); err != nil {
			logging.Router("Branch update failed: session=%s err=%v", sess.ID, err)
		}
		if err := r.store.UpsertBranchContext(sess.ID, *out.inv.Branch); err != nil {
			logging.Router("Branch context update failed: session=%s err=%v", sess.ID, err)
		}
	}

	result := &types.Result{
		Text:       out.inv.Text,
		Specialist: match.Specialist.Name,
		Tool:       match.Tool.Name,
		TokenCost:  out.inv.TokenCost,
		Branch:     out.inv.Branch,
	}
	if out.inv.TokenCost != nil && *out.inv.TokenCost > 0 {
		result.Alerts = r.applyUsage(sess.ID, *out.inv.TokenCost)
	}
	return result, nil
}

// archivesOwnSession reports whether a tool archives the session it was
// routed through as part of its normal effect. Such calls still append
// their own record rather than being discarded.
func archivesOwnSession(tool string) bool {
	return tool == "close_session" || tool == "start_session"
}

// applyUsage records token consumption and collects any newly crossed
// threshold alerts across all window kinds.
func (r *Router) applyUsage(sessionID string, tokens int64) []types.ThresholdAlert {
	if r.tracker == nil {
		return nil
	}
	if err := r.tracker.RecordUsage(sessionID, tokens, r.now()); err != nil {
		logging.Quota("Usage recording failed: session=%s err=%v", sessionID, err)
		return nil
	}

	var alerts []types.ThresholdAlert
	for _, kind := range quota.Kinds {
		crossed, err := r.tracker.CheckThresholds(kind)
		if err != nil {
			continue
		}
		for _, th := range crossed {
			alerts = append(alerts, types.ThresholdAlert{
				WindowKind: string(kind),
				Threshold:  th,
				Percent:    r.tracker.Percent(kind),
				Message:    r.tracker.AlertMessage(kind, th),
			})
		}
	}
	return alerts
}

// storageFailed hides the raw persistence error behind a generic retry
// prompt; ErrStorage stays underneath for the translator to recognize.
func (r *Router) storageFailed(match *registry.Match, err error) *types.Result {
	logging.Router("History append failed: tool=%s err=%v", match.Tool.Name, err)
	return r.failed(match, fmt.Errorf("%w: %v", ErrStorage, err))
}

func (r *Router) failed(match *registry.Match, err error) *types.Result {
	return &types.Result{
		Text:       r.translate(match.Specialist.Name, match.Tool.Name, err),
		Specialist: match.Specialist.Name,
		Tool:       match.Tool.Name,
		Failed:     true,
	}
}

// Pending returns the session's pending confirmation, if any.
func (r *Router) Pending(sessionID string) *types.PendingConfirmation {
	action := r.gate.Pending(sessionID)
	if action == nil {
		return nil
	}
	pc := action.PendingConfirmation
	return &pc
}
