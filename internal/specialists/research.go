package specialists

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
)

// NewResearchSpecialist builds the repository research specialist.
func NewResearchSpecialist(client SearchClient) *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "research",
		Description: "Answers questions about the repository",
		Triggers:    []string{"search", "find", "where is", "look up", "explain"},
		Tools: []registry.ToolSignature{
			{
				Name:        "search_repository",
				Description: "Search the repository for relevant code",
				Schema: registry.Schema{
					Required:   []string{"query"},
					Properties: map[string]string{"query": "What to search for"},
				},
			},
		},
		Invoke: func(ctx context.Context, tool string, args map[string]any) (*registry.Invocation, error) {
			if tool != "search_repository" {
				return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTool, tool)
			}

			query, _ := args["query"].(string)
			hits, err := client.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				return &registry.Invocation{Text: fmt.Sprintf("Nothing in the repository matched %q.", query)}, nil
			}

			// Voice output stays short: name the top hits only.
			const maxSpoken = 3
			spoken := hits
			if len(spoken) > maxSpoken {
				spoken = spoken[:maxSpoken]
			}
			text := fmt.Sprintf("Found %d matches for %q. Top results: %s.",
				len(hits), query, strings.Join(spoken, ", "))
			return &registry.Invocation{Text: text}, nil
		},
	}
}
