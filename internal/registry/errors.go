package registry

import "errors"

var (
	// ErrInvalidDescriptor indicates a descriptor missing required fields.
	ErrInvalidDescriptor = errors.New("invalid specialist descriptor")

	// ErrDuplicateSpecialist indicates a name collision on registration.
	ErrDuplicateSpecialist = errors.New("specialist already registered")

	// ErrDuplicateCapability indicates two specialists declaring the same
	// tool name.
	ErrDuplicateCapability = errors.New("capability already registered")

	// ErrNoSpecialist indicates no specialist matched the intent.
	ErrNoSpecialist = errors.New("no specialist matches intent")

	// ErrUnknownTool indicates a tool name not declared by any specialist.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingRequiredArg indicates a tool call missing a required argument.
	ErrMissingRequiredArg = errors.New("missing required argument")
)
