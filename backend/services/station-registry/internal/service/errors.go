package service

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailInUse is returned when attempting to register duplicate email.
	ErrEmailInUse = errors.New("auth: email already registered")
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrStationNotFound is returned when the referenced station does not exist.
	ErrStationNotFound = errors.New("station: not found")
	// ErrForbidden is returned for non-admin mutations when admin-only writes are enabled.
	ErrForbidden = errors.New("station: admin role required")
	// ErrUnknownOwner is returned when the session subject is not a registered user id.
	ErrUnknownOwner = errors.New("station: session does not belong to a registered user")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalidField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
