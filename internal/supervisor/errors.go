package supervisor

import "errors"

var (
	// ErrUnhandledIntent indicates no specialist could be resolved for
	// an intent. The router guarantees no side effects in this case.
	ErrUnhandledIntent = errors.New("no specialist can handle this intent")

	// ErrStorage wraps persistence failures surfaced through the router.
	ErrStorage = errors.New("storage failure")
)
