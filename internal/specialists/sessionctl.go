package specialists

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/store"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// NewSessionSpecialist builds the session-control specialist. It operates
// on the session named by the router-injected "session_id" argument,
// except start_session which creates a fresh one.
func NewSessionSpecialist(st *store.Store) *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "session",
		Description: "Session lifecycle and settings",
		Triggers:    []string{"session", "rename", "policy", "model"},
		Tools: []registry.ToolSignature{
			{
				Name:        "start_session",
				Description: "Start a new working session",
				Schema: registry.Schema{
					Properties: map[string]string{"name": "Optional session name"},
				},
			},
			{
				Name:        "rename_session",
				Description: "Rename the current session",
				Schema: registry.Schema{
					Required:   []string{"name"},
					Properties: map[string]string{"name": "New session name"},
				},
			},
			{
				Name:        "close_session",
				Description: "Archive the current session",
				Risky:       true,
			},
			{
				Name:        "set_approval_policy",
				Description: "Change the approval policy for risky actions",
				Schema: registry.Schema{
					Required:   []string{"policy"},
					Properties: map[string]string{"policy": "One of never, on-request, always"},
				},
			},
			{
				Name:        "set_model",
				Description: "Change the model used for coding tasks",
				Schema: registry.Schema{
					Required:   []string{"model"},
					Properties: map[string]string{"model": "Model name for the code-generation service"},
				},
			},
			{
				Name:        "session_status",
				Description: "Summarize the current session",
			},
		},
		Invoke: func(ctx context.Context, tool string, args map[string]any) (*registry.Invocation, error) {
			sessionID, _ := args["session_id"].(string)

			switch tool {
			case "start_session":
				name, _ := args["name"].(string)
				created, err := st.CreateSession(name)
				if err != nil {
					return nil, err
				}
				// A new session supersedes the one it was started from:
				// one active session per conversation context.
				if sessionID != "" {
					if err := st.ArchiveSession(sessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
						return nil, err
					}
					return &registry.Invocation{
						Text: fmt.Sprintf("Started session %s and archived the previous one.", created.Name),
					}, nil
				}
				return &registry.Invocation{
					Text: fmt.Sprintf("Started session %s.", created.Name),
				}, nil

			case "rename_session":
				name, _ := args["name"].(string)
				if err := st.RenameSession(sessionID, name); err != nil {
					return nil, err
				}
				return &registry.Invocation{Text: fmt.Sprintf("Renamed the session to %s.", name)}, nil

			case "close_session":
				if err := st.ArchiveSession(sessionID); err != nil {
					return nil, err
				}
				return &registry.Invocation{Text: "Archived the session."}, nil

			case "set_approval_policy":
				p, _ := args["policy"].(string)
				if err := st.SetPolicy(sessionID, types.ApprovalPolicy(p)); err != nil {
					return nil, err
				}
				return &registry.Invocation{Text: fmt.Sprintf("Approval policy is now %s.", p)}, nil

			case "set_model":
				model, _ := args["model"].(string)
				if err := st.SetModel(sessionID, model); err != nil {
					return nil, err
				}
				return &registry.Invocation{Text: fmt.Sprintf("Coding tasks will now use %s.", model)}, nil

			case "session_status":
				sess, err := st.GetSession(sessionID)
				if err != nil {
					return nil, err
				}
				return &registry.Invocation{Text: statusText(st, sess)}, nil

			default:
				return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTool, tool)
			}
		},
	}
}

func statusText(st *store.Store, sess *types.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s, policy %s, model %s", sess.Name, sess.Policy, sess.Model)
	if sess.Branch != "" {
		fmt.Fprintf(&b, ", on branch %s", sess.Branch)
	}
	if sess.Archived() {
		b.WriteString(", archived")
	}
	if total, err := st.SessionUsageTotal(sess.ID); err == nil && total > 0 {
		fmt.Fprintf(&b, ", %d tokens used", total)
	}
	b.WriteString(".")
	return b.String()
}
