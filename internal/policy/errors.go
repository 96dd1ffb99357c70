package policy

import "errors"

var (
	// ErrConfirmationInProgress indicates a risky action was requested
	// while another is already awaiting confirmation in the session.
	ErrConfirmationInProgress = errors.New("confirmation already in progress")

	// ErrNoPendingConfirmation indicates a confirm or cancel signal
	// arrived with nothing pending.
	ErrNoPendingConfirmation = errors.New("no confirmation pending")

	// ErrConfirmationMismatch indicates a confirmation signal naming a
	// different action than the one pending.
	ErrConfirmationMismatch = errors.New("confirmation does not match pending action")
)
