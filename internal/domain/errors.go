package domain

import "errors"

var (
	// ErrAttemptNotFound is returned when the referenced attempt does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrQuestionNotFound indicates a submitted question ID is unknown to the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSectionNotFound indicates the catalog has no sections for a course key.
	ErrSectionNotFound = errors.New("section not found")
	// ErrProfileNotFound is returned when no profile exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrPermissionDenied is returned when the caller does not own the attempt.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidState is returned when an operation requires a different attempt status.
	ErrInvalidState = errors.New("invalid attempt state")
	// ErrInvalidInput is returned when required identifying parameters are missing.
	ErrInvalidInput = errors.New("invalid input")
)
