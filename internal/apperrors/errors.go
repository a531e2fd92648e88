// Package apperrors defines the sentinel error values shared across the
// service layers and their mapping to HTTP status codes. Handlers never invent
// status codes themselves — they classify errors through HTTPStatus so the
// taxonomy stays consistent across endpoints.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials covers both "no such user" and "wrong password".
	// The two cases are never distinguished in responses to avoid user
	// enumeration; the distinction is logged server-side only.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates a bearer token that failed signature or
	// expiry validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrAlreadyExists indicates a registration attempt for an email that
	// already has an account.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAccessDenied indicates an attempt to address an artifact outside
	// the caller's tenant namespace. Never downgraded or absorbed.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound indicates the requested entity does not exist within the
	// caller's tenant namespace.
	ErrNotFound = errors.New("not found")

	// ErrIsolationViolation indicates that data crossed a tenant boundary at
	// the search or generation layer. Always propagated as an explicit
	// failure: a leak here is a scoping bug, which is worse than an outage.
	ErrIsolationViolation = errors.New("tenant isolation violation")

	// ErrExternalServiceUnavailable indicates an external collaborator is
	// unreachable or disabled (billing/quota class). The artifact store
	// absorbs the billing class by switching into degraded mode.
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")
)

// HTTPStatus maps a taxonomy error to its HTTP status code. Unclassified
// errors map to 500 so internal details never select a misleading status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrIsolationViolation):
		return http.StatusBadGateway
	case errors.Is(err, ErrExternalServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
