package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when an action is not legal from the current state
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrPermissionDenied is returned when the actor's role does not match the current approver role
	ErrPermissionDenied = errors.New("actor not authorized for this stage")

	// ErrNoteRequired is returned when a rejection is attempted without a reason
	ErrNoteRequired = errors.New("rejection note is required")
)
