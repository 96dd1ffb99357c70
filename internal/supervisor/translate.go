package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmedaymanzekry/codex-belya/internal/policy"
	"github.com/ahmedaymanzekry/codex-belya/internal/registry"
	"github.com/ahmedaymanzekry/codex-belya/internal/store"
)

// Translator maps raw specialist and infrastructure errors to voice-ready
// explanations. The router never leaks a raw error to the caller.
type Translator func(specialist, tool string, err error) string

// DefaultTranslator explains the known failure modes in plain language and
// falls back to a generic apology naming the specialist.
func DefaultTranslator(specialist, tool string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("The %s specialist timed out on %s. You can try again.", specialist, tool)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("The %s request was cancelled.", tool)
	case errors.Is(err, store.ErrSessionNotFound):
		return "I couldn't find that session."
	case errors.Is(err, store.ErrSessionArchived):
		return "That session is archived and can't be changed."
	case errors.Is(err, ErrStorage):
		return "I couldn't save that to the session history. Please try again."
	case errors.Is(err, registry.ErrMissingRequiredArg):
		return fmt.Sprintf("I'm missing a required detail for %s: %v.", tool, err)
	case errors.Is(err, policy.ErrConfirmationInProgress):
		return "Another action is already waiting for your confirmation. Confirm or cancel it first."
	case errors.Is(err, policy.ErrNoPendingConfirmation):
		return "There's nothing waiting for confirmation."
	case errors.Is(err, policy.ErrConfirmationMismatch):
		return "That confirmation doesn't match the action that's waiting."
	default:
		return fmt.Sprintf("The %s specialist hit a problem with %s. %s", specialist, tool, summarize(err))
	}
}

// summarize keeps raw error text short enough to speak.
func summarize(err error) string {
	const maxSpoken = 140
	msg := err.Error()
	if len(msg) > maxSpoken {
		msg = msg[:maxSpoken] + "..."
	}
	return msg
}
