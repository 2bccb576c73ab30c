package domain

import "errors"

// Mutation failure taxonomy. Backends map their transport errors onto these
// so callers can branch with errors.Is.
var (
	// ErrValidation means the payload failed server-side business rules,
	// e.g. a status that does not belong to the task's project.
	ErrValidation = errors.New("validation rejected")

	// ErrPermission means the user lacks rights for the intent.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound means the entity was deleted concurrently by another user.
	ErrNotFound = errors.New("not found")

	// ErrNetwork means the request got no response. Never retried
	// automatically; a blind retry could duplicate side effects.
	ErrNetwork = errors.New("network failure")

	// ErrTaskClosed rejects update intents against a closed task before any
	// request is dispatched.
	ErrTaskClosed = errors.New("task is closed")
)
