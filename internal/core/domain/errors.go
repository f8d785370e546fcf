package domain

import (
	"errors"
	"strings"
)

// Sentinel errors for profile and leave-request operations.
var (
	// ErrUnauthenticated indicates there is no identity on the call.
	// HTTP Status: 401 Unauthorized
	ErrUnauthenticated = errors.New("authentication required")

	// ErrValidationFailed indicates missing or malformed input. No write was attempted.
	// HTTP Status: 400 Bad Request
	ErrValidationFailed = errors.New("validation failed")

	// ErrProfileNotFound indicates no profile record exists for the identity.
	// HTTP Status: 404 Not Found
	ErrProfileNotFound = errors.New("profile not found")

	// ErrRequestNotFound indicates the leave request does not exist (or vanished mid-action).
	// HTTP Status: 404 Not Found
	ErrRequestNotFound = errors.New("request not found")

	// ErrForbidden indicates the caller does not own the leave request.
	// HTTP Status: 403 Forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrOnboardingIncomplete indicates the caller has not reached the required onboarding state.
	// HTTP Status: 403 Forbidden
	ErrOnboardingIncomplete = errors.New("onboarding incomplete")

	// ErrRoleNotPermitted indicates an onboarded caller whose role cannot use the operation.
	// HTTP Status: 403 Forbidden
	ErrRoleNotPermitted = errors.New("not available for this role")

	// ErrStoreUnavailable indicates the backing store failed (network, permissions).
	// HTTP Status: 503 Service Unavailable
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError lists the offending fields by their JSON names.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(e.Fields, ", ")
}

// Unwrap lets errors.Is(err, ErrValidationFailed) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError builds a ValidationError for the given fields.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}
