package services

import (
	"errors"

	"github.com/postboard/apiserver/internal/auth"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = auth.ErrInvalidToken
	// ErrUnauthorized is returned by the auth gate for any rejected caller.
	ErrUnauthorized = errors.New("could not validate credentials")
	// ErrConflict marks a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks an unknown resource or an empty listing page.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("not authorized to perform requested action")
)

// IsAuthError reports whether err is one of the authentication failures.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrUnauthorized)
}
