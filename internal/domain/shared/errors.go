// Package shared contains common domain types, errors and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Infrastructure errors
	ErrInternal           = errors.New("internal error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "assessment", "room"
	Op      string // Operation that failed, e.g., "UpdateProgress", "Grade"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Enrollment domain errors
var (
	ErrEnrollmentNotFound = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrAlreadyEnrolled    = NewDomainError("enrollment", "Create", ErrAlreadyExists, "student already enrolled in this course")
	ErrNotEnrollmentOwner = NewDomainError("enrollment", "CheckOwner", ErrUnauthorized, "actor does not own this enrollment")
	ErrNegativeWatchTime  = NewDomainError("enrollment", "Validate", ErrNegativeValue, "watch time cannot be negative")
	ErrEnrollmentConflict = NewDomainError("enrollment", "Save", ErrOptimisticLock, "enrollment was modified concurrently")
	ErrInvalidLessonID    = NewDomainError("enrollment", "Validate", ErrInvalidID, "invalid lesson ID")
)

// Course domain errors
var (
	ErrCourseNotFound = NewDomainError("course", "Find", ErrNotFound, "course not found")
)

// Assessment domain errors
var (
	ErrAssessmentNotFound = NewDomainError("assessment", "Find", ErrNotFound, "assessment not found")
	ErrAttemptLimit       = NewDomainError("assessment", "Grade", ErrAlreadyExists, "maximum attempts reached")
	ErrDuplicateAttempt   = NewDomainError("assessment", "SaveSubmission", ErrConcurrentModification, "submission with this attempt number already exists")
	ErrSubmissionNotFound = NewDomainError("assessment", "FindSubmission", ErrNotFound, "submission not found")
	ErrNegativeTimeSpent  = NewDomainError("assessment", "Validate", ErrNegativeValue, "time spent cannot be negative")
)

// Notification domain errors
var (
	ErrNotificationNotFound    = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrEmptyRecipient          = NewDomainError("notification", "Validate", ErrEmptyValue, "recipient cannot be empty")
	ErrInvalidNotificationType = NewDomainError("notification", "Validate", ErrInvalidInput, "unknown notification type")
	ErrEmptyNotification       = NewDomainError("notification", "Validate", ErrEmptyValue, "title and message cannot be empty")
)

// Room / real-time errors
var (
	ErrRoomClosed  = NewDomainError("room", "Publish", ErrInvalidState, "room registry is closed")
	ErrNilConn     = NewDomainError("room", "Join", ErrInvalidInput, "connection cannot be nil")
	ErrEmptyCourse = NewDomainError("room", "Join", ErrEmptyValue, "course id cannot be empty")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsUnauthorized checks if the error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsConflict checks if the error represents a conflict: a duplicate record,
// an exceeded attempt limit or a lost optimistic-lock race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrOptimisticLock) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried. Optimistic-lock
// failures are retryable (reload and recompute); attempt-limit conflicts
// are terminal and deliberately excluded.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOptimisticLock) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
