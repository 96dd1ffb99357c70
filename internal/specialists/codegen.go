package specialists

import (
	"context"
	"fmt"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// NewCodexSpecialist builds the code-generation specialist. The router
// injects "model" into the arguments from the session's model selection.
func NewCodexSpecialist(client CodegenClient) *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "codex",
		Description: "Delegates coding tasks to the code-generation service",
		Triggers:    []string{"code", "implement", "fix", "refactor", "write a", "build", "task"},
		Tools: []registry.ToolSignature{
			{
				Name:        "send_task",
				Description: "Send a coding task to the code-generation service",
				Schema: registry.Schema{
					Required: []string{"prompt"},
					Properties: map[string]string{
						"prompt": "The coding task to perform",
						"model":  "Model override for this task",
					},
				},
			},
			{
				Name:        "get_task_status",
				Description: "Check on the most recent coding task",
			},
		},
		Invoke: func(ctx context.Context, tool string, args map[string]any) (*registry.Invocation, error) {
			switch tool {
			case "send_task":
				prompt, _ := args["prompt"].(string)
				model, _ := args["model"].(string)
				if model == "" {
					model = types.DefaultModel
				}

				timer := logging.StartTimer(logging.CategorySpecialists, "codex send_task")
				result, err := client.SendTask(ctx, model, prompt)
				timer.Stop()
				if err != nil {
					return nil, err
				}

				cost := result.TokensUsed
				return &registry.Invocation{Text: result.Text, TokenCost: &cost}, nil

			case "get_task_status":
				status, err := client.TaskStatus(ctx)
				if err != nil {
					return nil, err
				}
				return &registry.Invocation{Text: status}, nil

			default:
				return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTool, tool)
			}
		},
	}
}
