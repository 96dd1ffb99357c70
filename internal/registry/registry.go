// Package registry holds the declarative specialist catalog and resolves
// user intents to a specialist and tool without any model round-trip.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

// Schema describes the arguments a tool accepts.
type Schema struct {
	// Required lists argument names that must be present.
	Required []string

	// Properties maps argument names to short human descriptions.
	Properties map[string]string
}

// ToolSignature declares one callable capability of a specialist.
type ToolSignature struct {
	Name        string
	Description string
	Schema      Schema

	// Risky tools require confirmation under the on-request approval
	// policy and always under the always policy.
	Risky bool
}

// Invocation is the outcome of a specialist tool call.
type Invocation struct {
	// Text is the voice-ready result summary.
	Text string

	// TokenCost is the token consumption of the call, nil when the
	// specialist does not meter usage.
	TokenCost *int64

	// Branch reports a branch change for specialists that switch or
	// create branches, nil otherwise.
	Branch *types.BranchOutcome
}

// InvokeFunc executes one tool of a specialist.
type InvokeFunc func(ctx context.Context, tool string, args map[string]any) (*Invocation, error)

// Descriptor declares a specialist: its identity, trigger keywords, and
// the tools it exposes. Resolution is driven entirely by this data.
type Descriptor struct {
	Name        string
	Description string

	// Triggers are lowercase keywords matched against the intent text
	// when no tool name matches directly.
	Triggers []string

	Tools  []ToolSignature
	Invoke InvokeFunc
}

// DefaultTool returns the specialist's primary tool.
func (d *Descriptor) DefaultTool() ToolSignature {
	return d.Tools[0]
}

// Tool returns the named tool signature and whether it exists.
func (d *Descriptor) Tool(name string) (ToolSignature, bool) {
	for _, t := range d.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolSignature{}, false
}

// Match is the result of resolving an intent.
type Match struct {
	Specialist *Descriptor
	Tool       ToolSignature
}

// Registry is the thread-safe specialist catalog. Specialists are kept in
// registration order so trigger resolution is deterministic.
type Registry struct {
	mu      sync.RWMutex
	ordered []*Descriptor
	byName  map[string]*Descriptor

	// byTool maps every declared tool name to its owning specialist.
	byTool map[string]*Descriptor
}

// NewRegistry creates an empty specialist registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Descriptor),
		byTool: make(map[string]*Descriptor),
	}
}

// Register adds a specialist to the catalog. Tool names are claimed
// globally: two specialists cannot declare the same tool.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSpecialist, d.Name)
	}
	for _, t := range d.Tools {
		if owner, exists := r.byTool[t.Name]; exists {
			return fmt.Errorf("%w: %s (owned by %s)", ErrDuplicateCapability, t.Name, owner.Name)
		}
	}

	r.ordered = append(r.ordered, d)
	r.byName[d.Name] = d
	for _, t := range d.Tools {
		r.byTool[t.Name] = d
	}

	logging.SpecialistsDebug("Registered specialist: %s (tools=%d, triggers=%d)",
		d.Name, len(d.Tools), len(d.Triggers))
	return nil
}

// MustRegister registers a specialist and panics on error. Use for static
// registration at startup.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(fmt.Sprintf("failed to register specialist %s: %v", d.Name, err))
	}
}

func (d *Descriptor) validate() error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if len(d.Tools) == 0 {
		return fmt.Errorf("%w: %s declares no tools", ErrInvalidDescriptor, d.Name)
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: %s has no invoke function", ErrInvalidDescriptor, d.Name)
	}
	for _, t := range d.Tools {
		if t.Name == "" {
			return fmt.Errorf("%w: %s declares an unnamed tool", ErrInvalidDescriptor, d.Name)
		}
	}
	return nil
}

// Get returns a specialist by name, or nil if not registered.
func (r *Registry) Get(name string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Resolve maps an intent to a specialist and tool. A token of the intent
// naming a declared tool wins outright; otherwise the first registered
// specialist with a trigger keyword contained in the intent matches, with
// its primary tool selected. Resolution is pure lookup over the declared
// descriptors, never a model call.
func (r *Registry) Resolve(intent string) (*Match, error) {
	norm := strings.ToLower(strings.TrimSpace(intent))
	if norm == "" {
		return nil, fmt.Errorf("%w: empty intent", ErrNoSpecialist)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, token := range tokenize(norm) {
		if owner, ok := r.byTool[token]; ok {
			tool, _ := owner.Tool(token)
			logging.SpecialistsDebug("Resolved intent by tool name: tool=%s specialist=%s", token, owner.Name)
			return &Match{Specialist: owner, Tool: tool}, nil
		}
	}

	for _, d := range r.ordered {
		for _, trigger := range d.Triggers {
			if strings.Contains(norm, trigger) {
				logging.SpecialistsDebug("Resolved intent by trigger: trigger=%q specialist=%s", trigger, d.Name)
				return &Match{Specialist: d, Tool: d.DefaultTool()}, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNoSpecialist, intent)
}

// ResolveTool returns the specialist owning an exact tool name.
func (r *Registry) ResolveTool(tool string) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.byTool[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	sig, _ := owner.Tool(tool)
	return &Match{Specialist: owner, Tool: sig}, nil
}

// ValidateArgs checks that every required argument of a tool is present.
func ValidateArgs(tool ToolSignature, args map[string]any) error {
	for _, required := range tool.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s requires %q", ErrMissingRequiredArg, tool.Name, required)
		}
	}
	return nil
}

// Capability is one line of the spoken capability menu.
type Capability struct {
	Specialist  string
	Tool        string
	Description string
	Risky       bool
}

// Capabilities returns every declared tool across all specialists, sorted
// by specialist then tool name, for the voice capability menu.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var caps []Capability
	for _, d := range r.ordered {
		for _, t := range d.Tools {
			caps = append(caps, Capability{
				Specialist:  d.Name,
				Tool:        t.Name,
				Description: t.Description,
				Risky:       t.Risky,
			})
		}
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].Specialist != caps[j].Specialist {
			return caps[i].Specialist < caps[j].Specialist
		}
		return caps[i].Tool < caps[j].Tool
	})
	return caps
}

// Names returns all registered specialist names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ordered))
	for _, d := range r.ordered {
		names = append(names, d.Name)
	}
	return names
}

// Count returns the number of registered specialists.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// tokenize splits normalized intent text on anything that is not a letter,
// digit, or underscore, so "run push_branch now" yields the tool token.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
