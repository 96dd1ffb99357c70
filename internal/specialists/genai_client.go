package specialists

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
)

// GenAIClient is a CodegenClient backed by Google's Gemini API. It also
// serves as the fallback intent classifier.
type GenAIClient struct {
	client *genai.Client

	// classifierModel handles intent classification; task delegation uses
	// the session's model.
	classifierModel string

	mu         sync.Mutex
	lastStatus string
}

// NewGenAIClient creates a Gemini-backed code-generation client.
// classifierModel is used for fallback intent classification.
func NewGenAIClient(apiKey, classifierModel string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if classifierModel == "" {
		classifierModel = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client:          client,
		classifierModel: classifierModel,
		lastStatus:      "No tasks sent yet.",
	}, nil
}

// SendTask submits a coding prompt and blocks until the model responds.
func (c *GenAIClient) SendTask(ctx context.Context, model, prompt string) (*TaskResult, error) {
	c.setStatus(fmt.Sprintf("Task in progress on %s.", model))

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		c.setStatus(fmt.Sprintf("Last task failed: %v", err))
		return nil, fmt.Errorf("GenAI task failed: %w", err)
	}

	var tokens int64
	if result.UsageMetadata != nil {
		tokens = int64(result.UsageMetadata.TotalTokenCount)
	}
	logging.SpecialistsDebug("GenAI task complete: model=%s tokens=%d", model, tokens)

	c.setStatus("Last task completed successfully.")
	return &TaskResult{Text: result.Text(), TokensUsed: tokens}, nil
}

// Classify picks the declared tool that best serves a free-text intent, or
// returns empty when none fits. The model answers with a bare tool name;
// anything outside the declared set is discarded.
func (c *GenAIClient) Classify(ctx context.Context, intent string, caps []registry.Capability) (string, error) {
	var menu strings.Builder
	for _, cap := range caps {
		fmt.Fprintf(&menu, "- %s: %s\n", cap.Tool, cap.Description)
	}
	prompt := fmt.Sprintf(
		"Pick the single tool that best serves this request, or answer none.\n\nTools:\n%s\nRequest: %s\n\nAnswer with the tool name only.",
		menu.String(), intent)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.classifierModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("intent classification failed: %w", err)
	}

	answer := strings.TrimSpace(strings.ToLower(result.Text()))
	for _, cap := range caps {
		if answer == cap.Tool {
			return cap.Tool, nil
		}
	}
	return "", nil
}

// TaskStatus reports on the most recent task.
func (c *GenAIClient) TaskStatus(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus, nil
}

func (c *GenAIClient) setStatus(s string) {
	c.mu.Lock()
	c.lastStatus = s
	c.mu.Unlock()
}
