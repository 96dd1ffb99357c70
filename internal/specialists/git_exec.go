package specialists

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
)

// ExecGitClient is a GitClient that shells out to the git binary.
type ExecGitClient struct {
	// Dir is the repository root. Empty means the process working
	// directory.
	Dir string
}

// NewExecGitClient creates a git client rooted at dir.
func NewExecGitClient(dir string) *ExecGitClient {
	return &ExecGitClient{Dir: dir}
}

func (g *ExecGitClient) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.SpecialistsDebug("git %s", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s failed: %s", args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CurrentBranch reports the checked-out branch and working tree state.
func (g *ExecGitClient) CurrentBranch(ctx context.Context) (string, bool, error) {
	branch, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", false, err
	}
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return "", false, err
	}
	return branch, status != "", nil
}

// CreateBranch creates and checks out a new branch.
func (g *ExecGitClient) CreateBranch(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", "-b", name)
	return err
}

// SwitchBranch checks out an existing branch.
func (g *ExecGitClient) SwitchBranch(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", name)
	return err
}

// Push pushes the current branch to a remote.
func (g *ExecGitClient) Push(ctx context.Context, remote string) error {
	_, err := g.run(ctx, "push", remote, "HEAD")
	return err
}

// DiscardChanges resets the working tree and drops untracked files.
func (g *ExecGitClient) DiscardChanges(ctx context.Context) error {
	if _, err := g.run(ctx, "reset", "--hard", "HEAD"); err != nil {
		return err
	}
	_, err := g.run(ctx, "clean", "-fd")
	return err
}

// ExecSearchClient is a SearchClient backed by git grep.
type ExecSearchClient struct {
	Dir string
}

// NewExecSearchClient creates a repository search client rooted at dir.
func NewExecSearchClient(dir string) *ExecSearchClient {
	return &ExecSearchClient{Dir: dir}
}

// Search returns the files matching a query, most relevant first as git
// grep reports them.
func (s *ExecSearchClient) Search(ctx context.Context, query string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "grep", "-l", "-i", "--", query)
	cmd.Dir = s.Dir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// git grep exits 1 on no matches.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("repository search failed: %w", err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
