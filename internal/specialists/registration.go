package specialists

import (
	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/store"
)

// Deps holds the external clients the built-in specialists delegate to.
type Deps struct {
	Codegen CodegenClient
	Git     GitClient
	Search  SearchClient
	Store   *store.Store
}

// RegisterAll registers every built-in specialist whose dependency is
// present. Registration order fixes trigger tie-breaking, so it is stable:
// codex, git, research, session.
func RegisterAll(reg *registry.Registry, deps Deps) error {
	if deps.Codegen != nil {
		if err := reg.Register(NewCodexSpecialist(deps.Codegen)); err != nil {
			return err
		}
	}
	if deps.Git != nil {
		if err := reg.Register(NewGitSpecialist(deps.Git)); err != nil {
			return err
		}
	}
	if deps.Search != nil {
		if err := reg.Register(NewResearchSpecialist(deps.Search)); err != nil {
			return err
		}
	}
	if deps.Store != nil {
		if err := reg.Register(NewSessionSpecialist(deps.Store)); err != nil {
			return err
		}
	}
	return nil
}
