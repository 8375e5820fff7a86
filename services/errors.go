package services

import "fmt"

// ValidationError means the request itself is malformed or the action is not
// legal from the record's current state. Callers get it synchronously and
// should not retry without changing the request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError means the caller lost a race on a concurrent transition.
// The caller must re-read current state before retrying; nothing retries
// automatically.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError means the referenced record does not exist (or is deleted).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AuthorizationError means the actor lacks the role or ownership required
// for the action.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// PersistenceError wraps a storage failure. When it comes from an audit
// write, the paired business mutation has been rolled back with it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
