// Package specialists declares the built-in specialist agents and the
// external clients they delegate to. Each specialist is a declarative
// registry descriptor whose invoke function talks to a narrow client
// interface, so transports can be swapped or faked in tests.
package specialists

import "context"

// TaskResult is the outcome of a delegated code-generation task.
type TaskResult struct {
	// Text is the service's final response.
	Text string

	// TokensUsed is the total token consumption of the round-trip.
	TokensUsed int64
}

// CodegenClient delegates coding tasks to the code-generation service.
type CodegenClient interface {
	// SendTask submits a prompt and blocks until the service responds.
	SendTask(ctx context.Context, model, prompt string) (*TaskResult, error)

	// TaskStatus reports on the most recent task.
	TaskStatus(ctx context.Context) (string, error)
}

// GitClient performs repository branch operations.
type GitClient interface {
	// CurrentBranch reports the checked-out branch and whether the
	// working tree has uncommitted changes.
	CurrentBranch(ctx context.Context) (branch string, dirty bool, err error)

	CreateBranch(ctx context.Context, name string) error
	SwitchBranch(ctx context.Context, name string) error
	Push(ctx context.Context, remote string) error

	// DiscardChanges resets the working tree, destroying local edits.
	DiscardChanges(ctx context.Context) error
}

// SearchClient answers repository research queries.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]string, error)
}
