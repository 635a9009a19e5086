// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"

	"taskmate/internal/auth"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, unknown task number).
	UserError = 1

	// AuthError indicates an auth/config error.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// FromError maps a failed operation to an exit code. Missing or rejected
// credentials are auth errors; everything else is blamed on the backend.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, auth.ErrNotSignedIn),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrNotConfigured),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, tasks.ErrSignedOut):
		return AuthError
	case service.KindOf(err) == service.KindPermission:
		return AuthError
	default:
		return BackendError
	}
}
