package common

import (
	"errors"
	"fmt"
)

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Inbox errors
	ErrInboxNotFound     = errors.New("conversation not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("persistence failure")
	ErrEmptyMessage      = errors.New("message has neither body nor attachments")
	ErrSelfConversation  = errors.New("cannot start a conversation with yourself")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrUserNotFound = errors.New("user not found")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError is returned by write paths when a conversation or message is absent
type NotFoundError struct {
	Resource string
	ID       uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// Is matches ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PermissionDeniedError is returned when the viewer may not perform an action
type PermissionDeniedError struct {
	UserID string
	Action string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %q is not allowed to %s", e.UserID, e.Action)
}

// Is matches ErrForbidden
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrForbidden
}

// InvalidTransitionError is returned for status changes the state machine rejects
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// Is matches ErrInvalidTransition
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PersistenceError wraps a storage failure that rolled back an atomic unit
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the storage error
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// WrapPersistence leaves domain errors untouched and wraps everything else
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf *NotFoundError
		pd *PermissionDeniedError
		it *InvalidTransitionError
		pe *PersistenceError
	)
	if errors.As(err, &nf) || errors.As(err, &pd) || errors.As(err, &it) || errors.As(err, &pe) ||
		errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrSelfConversation) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
