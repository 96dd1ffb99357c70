package specialists

import (
	"context"
	"fmt"

	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// NewGitSpecialist builds the branch-operations specialist. Tools that
// change or report the branch return a BranchOutcome so the router can
// persist the session's branch context.
func NewGitSpecialist(client GitClient) *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "git",
		Description: "Repository branch operations",
		Triggers:    []string{"branch", "push", "checkout", "git"},
		Tools: []registry.ToolSignature{
			{
				Name:        "check_current_branch",
				Description: "Report the checked-out branch and working tree state",
			},
			{
				Name:        "create_branch",
				Description: "Create and switch to a new branch",
				Schema: registry.Schema{
					Required:   []string{"name"},
					Properties: map[string]string{"name": "Branch name to create"},
				},
			},
			{
				Name:        "switch_branch",
				Description: "Switch to an existing branch",
				Schema: registry.Schema{
					Required:   []string{"name"},
					Properties: map[string]string{"name": "Branch name to switch to"},
				},
			},
			{
				Name:        "push_branch",
				Description: "Push the current branch to a remote",
				Schema: registry.Schema{
					Properties: map[string]string{"remote": "Remote to push to, defaults to origin"},
				},
				Risky: true,
			},
			{
				Name:        "discard_changes",
				Description: "Discard all uncommitted changes in the working tree",
				Risky:       true,
			},
		},
		Invoke: func(ctx context.Context, tool string, args map[string]any) (*registry.Invocation, error) {
			switch tool {
			case "check_current_branch":
				branch, dirty, err := client.CurrentBranch(ctx)
				if err != nil {
					return nil, err
				}
				state := "clean"
				if dirty {
					state = "with uncommitted changes"
				}
				return &registry.Invocation{
					Text:   fmt.Sprintf("You are on branch %s, working tree %s.", branch, state),
					Branch: &types.BranchOutcome{Branch: branch, Dirty: dirty},
				}, nil

			case "create_branch":
				name, _ := args["name"].(string)
				if err := client.CreateBranch(ctx, name); err != nil {
					return nil, err
				}
				return &registry.Invocation{
					Text:   fmt.Sprintf("Created and switched to branch %s.", name),
					Branch: &types.BranchOutcome{Branch: name},
				}, nil

			case "switch_branch":
				name, _ := args["name"].(string)
				if err := client.SwitchBranch(ctx, name); err != nil {
					return nil, err
				}
				return &registry.Invocation{
					Text:   fmt.Sprintf("Switched to branch %s.", name),
					Branch: &types.BranchOutcome{Branch: name},
				}, nil

			case "push_branch":
				remote, _ := args["remote"].(string)
				if remote == "" {
					remote = "origin"
				}
				if err := client.Push(ctx, remote); err != nil {
					return nil, err
				}
				return &registry.Invocation{Text: fmt.Sprintf("Pushed the current branch to %s.", remote)}, nil

			case "discard_changes":
				if err := client.DiscardChanges(ctx); err != nil {
					return nil, err
				}
				branch, _, berr := client.CurrentBranch(ctx)
				inv := &registry.Invocation{Text: "Discarded all uncommitted changes."}
				if berr == nil {
					inv.Branch = &types.BranchOutcome{Branch: branch, Dirty: false}
				}
				return inv, nil

			default:
				return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTool, tool)
			}
		},
	}
}
